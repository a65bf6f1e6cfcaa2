// Package report defines the daily report record and the field extractor
// that recognizes and parses report messages out of free-form chat text.
//
// Recognition is a liberal keyword gate; precision lives in Parse, which
// anchors on section phrases and tolerates colon/linebreak variants.
package report
