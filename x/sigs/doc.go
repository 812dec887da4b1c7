/*
Package sigs keeps the per signer sequence used to authenticate requests.

A client includes its current sequence in every signed request. A request
is accepted only when the sequence matches the stored value, which is then
incremented, so a captured request cannot be sent again.
*/
package sigs
