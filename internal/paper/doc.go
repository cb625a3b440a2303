// Package paper simulates order acknowledgement and fills against the last
// observed top of book, without a real venue.
//
// The fill model is immediate-or-rest: an order that crosses the known
// quote when it is submitted fills at its own price for its full quantity;
// anything else rests in the bot state's open orders until cancelled.
// Resting orders are never matched against later book updates.
package paper
