// Package domain contains the core entities of the analysis dispatch
// service: analysis tasks and their lifecycle, registered remote services,
// research papers and the wire documents exchanged with remote analysis
// services. It is independent of any storage or transport mechanism.
package domain
