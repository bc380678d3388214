// Package catalog loads the port to service name table used to annotate
// scan results.
//
// The table uses the nmap-services format:
//
//	# comment
//	ssh	22/tcp	0.182286	# Secure Shell Login
//	http	80/tcp	0.484143	# World Wide Web HTTP
//
// A missing or unreadable table is not fatal: LoadOrEmpty returns an empty
// catalog, and Lookup reports "unknown" for every port.
package catalog
