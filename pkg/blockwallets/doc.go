/*
Package blockwallets talks to the [BlockWallets] custodial wallet REST API.

It covers the two calls a deposit flow needs: creating a TRON wallet and
querying the gathered transaction records of an address.

[BlockWallets]: https://blockwallets.io/docs/api/wallet-create
*/
package blockwallets
