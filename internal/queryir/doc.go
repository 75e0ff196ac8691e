// Package queryir is a small query representation for reading the
// dispatch journal.
//
// Readers describe what they want as a Select over one journal table
// with a predicate tree. The representation is backend neutral: the
// querysql package compiles it to parameterized SQLite, and a test can
// evaluate it in memory with Match.
//
//	Select{
//	  From:   "dispatches",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "session_id", Value: ir.IRString("s1")},
//	    Equals{Field: "type", Value: ir.IRString("inc")},
//	    AtLeast{Field: "seq", Value: 2},
//	  }},
//	}
//
// Only fields declared in Tables may be referenced. Comparisons against
// null are rejected because journal columns are never NULL.
package queryir
