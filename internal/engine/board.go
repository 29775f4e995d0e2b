package engine

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrNotEnoughWords is returned by NewBoard when a WordSource can't supply
// BoardSize distinct words.
var ErrNotEnoughWords = errors.New("engine: word source did not return enough words")

// WordSource supplies the words a board is dealt from. Grounded on
// GameManager.cpp's LoadWordList, which reads a flat word list file once
// at startup and draws from it per match.
type WordSource interface {
	Words(n int) ([]string, error)
}

// NewBoard draws BoardSize words from src and assigns card types following
// the fixed distribution (9 for the starting team, 8 for the other, 7
// neutral, 1 assassin), shuffled independently of the word draw. Grounded
// on GameManager.cpp's AssignCards.
func NewBoard(src WordSource, rng *rand.Rand) ([BoardSize]Card, error) {
	var cards [BoardSize]Card

	words, err := src.Words(BoardSize)
	if err != nil {
		return cards, fmt.Errorf("engine: drawing board words: %w", err)
	}
	if len(words) < BoardSize {
		return cards, ErrNotEnoughWords
	}

	types := make([]CardType, 0, BoardSize)
	for i := 0; i < RedCardCount; i++ {
		types = append(types, CardRed)
	}
	for i := 0; i < BlueCardCount; i++ {
		types = append(types, CardBlue)
	}
	for i := 0; i < NeutralCount; i++ {
		types = append(types, CardNeutral)
	}
	for i := 0; i < AssassinCount; i++ {
		types = append(types, CardAssassin)
	}

	rng.Shuffle(len(types), func(i, j int) { types[i], types[j] = types[j], types[i] })

	for i := 0; i < BoardSize; i++ {
		cards[i] = Card{Word: words[i], Type: types[i]}
	}
	return cards, nil
}
