// Package wire defines the logical SyncML DM message model and the
// codec that converts it to and from the wire representation.
//
// A message is a SyncHdr (addressing, sequencing, credentials, transport
// limits) plus a SyncBody holding an ordered, heterogeneous command list
// (Status, Alert, Replace) and the Final marker. The command list is a
// sealed union; code that scans a body switches on the concrete command
// type.
package wire
