// Package msgid generates correlation ids for requests that expect a response.
//
// # Overview
//
// Every request the session sends with a pending response slot carries an id
// in its "@extra" field. The engine echoes that field verbatim on the matching
// response, which is how the dispatch loop finds the waiting caller.
//
// # Layout
//
// An id is a 64-bit value whose high 32 bits hold Unix seconds and whose low
// 32 bits hold the sub-second fraction scaled to 2^32. Ids requested within the
// same clock reading are separated by a stride of 4:
//
//	id = (seconds << 32) + fraction + offset
//
// # Guarantees
//
// A Generator is safe for concurrent use. Ids returned by one Generator are
// strictly increasing, even if the wall clock steps backwards.
package msgid
