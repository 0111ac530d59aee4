// Package ingest parses simulator log lines into ir.Event values.
//
// Three line forms are accepted:
//
//	1234567\t1\tmessage       transcript form
//	1234567\tID:1\tmessage    simulator export form
//	1234567:1:message         raw simulator log form
//
// Blank lines and header or banner lines are skipped. Anything else that
// does not parse is counted as malformed and logged at debug level; it
// never stops ingestion.
package ingest
