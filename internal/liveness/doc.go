// Package liveness decides whether a target host is reachable before its
// ports are scanned.
//
// ICMPChecker sends echo requests with golang.org/x/net/icmp. TCPChecker
// connects to a few common ports and treats both a completed handshake and
// a refusal as proof of life. Chain combines them: the first checker that
// sees the host alive wins, and checkers that cannot run (for example ICMP
// without privileges) are skipped. Always disables the check.
package liveness
