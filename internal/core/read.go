package core

// read.go assembles one Record from one row.
//
// Every column ends in exactly one of three outcomes: a property is written,
// an error is appended to the sink, or the column is silently omitted
// (null and not required). Nested columns recurse into the same row and
// leave required/type checks to their leaf columns.

// HeaderIndex maps a column key to the position of its first occurrence in the header row.
type HeaderIndex map[string]int

// MakeHeaderIndex indexes a header row. Null header cells are skipped and
// only the first occurrence of a repeated name is kept.
func MakeHeaderIndex(header Row) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, cell := range header {
		if !cell.Valid {
			continue
		}
		if _, seen := idx[cell.Value]; !seen {
			idx[cell.Value] = i
		}
	}
	return idx
}

// lookup returns the cell for key, or null when the key is not in the header.
func (h HeaderIndex) lookup(row Row, key string) Cell {
	pos, ok := h[key]
	if !ok {
		return Null()
	}
	return row.At(pos)
}

// reader holds the state shared by the recursive calls for one conversion.
type reader struct {
	parser parser
	header HeaderIndex
	errors *[]ConversionError
}

// read converts row (the rowIndex-th data row, 1-based) against schema.
// It returns nil when no property was written.
func (rd reader) read(schema Schema, row Row, rowIndex int) (Record, error) {
	record := make(Record)
	for _, col := range schema {
		var (
			value  any
			reason string
		)

		raw := rd.header.lookup(row, col.Key)

		switch {
		case col.Kind == KindNested:
			nested, err := rd.read(col.Schema, row, rowIndex)
			if err != nil {
				return nil, err
			}
			if nested != nil {
				value = nested
			}
		case !raw.Valid:
			// Nothing to parse.
		case col.Kind == KindList:
			list, bad, result, err := rd.readList(raw.Value, col)
			if err != nil {
				return nil, err
			}
			if result.Failed() {
				value, reason = bad, result.Reason
			} else if len(list) > 0 {
				value = list
			}
		default:
			result, err := rd.parser.parse(raw, col)
			if err != nil {
				return nil, err
			}
			if result.Failed() {
				value, reason = raw.Value, result.Reason
			} else {
				value = result.Value
			}
		}

		if reason == "" && value == nil && col.Required && col.Kind != KindNested {
			reason = ReasonRequired
		}

		if reason != "" {
			*rd.errors = append(*rd.errors, ConversionError{
				Reason: reason,
				Row:    rowIndex,
				Column: col.Key,
				Value:  value,
				Type:   col.TypeName(),
			})
			continue
		}
		if value != nil {
			record[col.Prop] = value
		}
	}

	if len(record) == 0 {
		return nil, nil
	}
	return record, nil
}

// readList parses every element of a list cell. On failure it returns the
// first failing element and its result; otherwise the non-null values.
func (rd reader) readList(raw string, col Column) (values []any, bad string, failed ParseResult, err error) {
	for _, token := range SplitList(raw, col.delimiter()) {
		result, err := rd.parser.parse(Text(token), col)
		if err != nil {
			return nil, "", ParseResult{}, err
		}
		if result.Failed() {
			return nil, token, result, nil
		}
		if result.Value != nil {
			values = append(values, result.Value)
		}
	}
	return values, "", ParseResult{}, nil
}
