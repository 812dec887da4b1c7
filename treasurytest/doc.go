/*
Package treasurytest provides helpers for testing treasury extensions:
random keys and conditions, an in-memory Authenticator and a recording
ledger that can be used in place of the cash extension.
*/
package treasurytest
