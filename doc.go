// Package valutatrade implements a multi-currency trading ledger: user
// portfolios of fiat and crypto wallets, an exchange-rate cache refreshed
// from external providers, and an append-only log of executed trades.
//
// The package is the domain core. Rate providers implement RateSource in
// their own packages (coingecko, exchangerate); the cmd package exposes
// the operations as a command line application.
package valutatrade
