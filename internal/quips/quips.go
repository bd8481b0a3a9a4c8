// Package quips holds the status lines shown to players after each move.
package quips

import "github.com/robalobadob/minesweeper/internal/game"

// Welcome greets a fresh board.
const Welcome = "Do you think you're ready for this?"

// For picks the line for a move. Finishing the game beats the outcome
// itself, so the winning reveal reads as a win.
func For(mv game.Move) string {
	switch {
	case mv.Status == game.StatusWon:
		return "You've won, lucker!"
	case mv.Outcome == game.OutcomeMine:
		return "You've lost, sucker!"
	case mv.Outcome == game.OutcomeRevealed && mv.Adjacent == 0:
		return "Yeehaa"
	case mv.Outcome == game.OutcomeRevealed:
		return "Phew"
	case mv.Outcome == game.OutcomeFlagPlaced:
		return "And you're really sure?"
	case mv.Outcome == game.OutcomeFlagRemoved:
		return "What a coward..."
	case mv.Status == game.StatusLost:
		return "It's over. Start a new game."
	default:
		return ""
	}
}
