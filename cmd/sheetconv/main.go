// Command sheetconv converts CSV and XLSX sheets into typed records using
// YAML schema definitions, from the command line or over HTTP.
package main

func main() {
	Execute()
}
