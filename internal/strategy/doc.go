// Package strategy implements the baseline market-making decision function.
//
// Decide quotes a symmetric buy and sell around the fair probability held in
// the bot state every time a venue book event arrives. It does not look at
// open orders; see replay.RequoteMode for how repeated quotes are handled.
package strategy
