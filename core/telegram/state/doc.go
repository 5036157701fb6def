// Package state keeps per-user conversation sessions in memory. Sessions are
// generic over the data a bot collects, so the state machine that drives them
// stays in the bot's own package.
package state
