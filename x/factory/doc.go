/*
Package factory creates vaults and keeps track of all vaults it created.

Each vault gets its own key space in the registry store and an address
derived from the registry sequence. Instances are listed in creation order.
*/
package factory
