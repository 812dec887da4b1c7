/*
Package cash defines a simple ledger of fungible assets.

There is no logic in the assets, except that the balance of any holder
may not go below zero. Thus, this implementation is referred to as cash.
Simple and safe.

An asset is identified by an address. Every holder has a separate balance
of each asset. Holders can send funds directly or allow another address to
spend a limited amount on their behalf.

Ledger implements the vault ledger, so a vault address can hold and pay
out cash.
*/
package cash
