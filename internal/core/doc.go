// Package core converts sheet grids into typed records.
//
// The package is pure: it performs no I/O and keeps no state between calls.
// Readers for CSV and XLSX files live in the source package; schema files and
// the schema registry live in the schema package.
//
// # Schemas
//
// A [Schema] is an ordered list of [Column] values, each naming the header it
// reads and the property it writes:
//
//	schema := core.Schema{
//	    core.Scalar("NAME", "name", core.TypeText).Require(),
//	    core.Scalar("BORN", "born", core.TypeTimestamp),
//	    core.List("TAGS", "tags", core.TypeText),
//	    core.Nested("address", core.Schema{
//	        core.Scalar("CITY", "city", core.TypeText),
//	    }),
//	    core.Custom("PHONE", "phone", parsePhone),
//	}
//
// # Conversion
//
// [Convert] reads row 0 as the header and every following row as a record.
// A record that ends up with no properties is dropped. Cell problems never
// stop the conversion; they are collected as [ConversionError] values:
//
//   - "invalid": the cell is not a valid value of the declared type
//   - "required": a required column is empty
//   - any other text: the message of a failed ParseFunc or ValidateFunc
//
// List columns hold several values in one cell, separated by commas.
// Double quotes protect separators: `a, "b, c"` is the list [a, "b, c"].
//
// # Row numbers
//
// Error rows count data rows from 1. When rows were filtered before
// conversion, [Options.RowMap] maps them back to their source rows.
package core
