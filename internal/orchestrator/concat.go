package orchestrator

import (
	"bytes"
	"fmt"

	"github.com/allisson/backydb/internal/schemaengine"
)

// categoryMarker prefixes each category's bytes inside a single-file
// concatenated dump, so a restore run can split the dump back into its
// per-category segments without the Schema Engine ever needing to know
// about single-file-vs-multiple-files layout. The marker is an ordinary
// SQL line comment, harmless to any engine that ignores it, in the spirit
// of the structural banner comments real dump tools already emit.
func categoryMarker(category schemaengine.ObjectCategory) []byte {
	return []byte(fmt.Sprintf("-- backydb:category %s\n", category))
}

// concatSegments joins segs (already in CreateOrder) into one byte stream,
// each preceded by its category marker.
func concatSegments(segs []categorySegment) []byte {
	var buf bytes.Buffer
	for _, s := range segs {
		buf.Write(categoryMarker(s.Category))
		buf.Write(s.Data)
	}
	return buf.Bytes()
}

// categorySegment is one category's raw extracted bytes.
type categorySegment struct {
	Category schemaengine.ObjectCategory
	Data     []byte
}

// splitSegments reverses concatSegments, recovering each category's bytes
// from a single concatenated dump.
func splitSegments(dump []byte) ([]categorySegment, error) {
	var segs []categorySegment
	rest := dump
	for len(rest) > 0 {
		var matchedCategory schemaengine.ObjectCategory
		var markerLen int
		for _, c := range schemaengine.CreateOrder {
			marker := categoryMarker(c)
			if bytes.HasPrefix(rest, marker) {
				matchedCategory = c
				markerLen = len(marker)
				break
			}
		}
		if markerLen == 0 {
			return nil, errMalformedDump
		}
		rest = rest[markerLen:]

		next := len(rest)
		for _, c := range schemaengine.CreateOrder {
			idx := bytes.Index(rest, categoryMarker(c))
			if idx >= 0 && idx < next {
				next = idx
			}
		}

		segs = append(segs, categorySegment{Category: matchedCategory, Data: rest[:next]})
		rest = rest[next:]
	}
	return segs, nil
}
