// Package wordlist supplies the board words a room deals from a flat
// text file, one word per line. Grounded on
// original_source/CodeNamesServer/src/GameManager.cpp's LoadWordList:
// blank lines are skipped, a short file is padded rather than treated as
// fatal, and the list is loaded once at startup and sampled per match.
package wordlist

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
	"os"
	"strings"

	"github.com/go-codenames/server/internal/engine"
)

// List is an in-memory word pool, safe for concurrent Words calls.
type List struct {
	words []string
}

// Load reads path, one word per line, skipping blanks and trimming a
// trailing \r. If the file is missing or short, the list is padded with
// placeholder words instead of failing outright — mirroring the original
// loader's behavior of degrading gracefully rather than crashing.
func Load(path string) (*List, error) {
	words, err := readLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &List{words: placeholders(engine.BoardSize)}, nil
		}
		return nil, fmt.Errorf("wordlist: reading %s: %w", path, err)
	}
	if len(words) < engine.BoardSize {
		words = append(words, placeholders(engine.BoardSize-len(words))...)
	}
	return &List{words: words}, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}

func placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("WORD%d", i+1)
	}
	return out
}

// Words satisfies engine.WordSource: it returns n distinct words drawn
// uniformly at random from the pool, without replacement. If the pool has
// fewer than n words it returns everything it has, and the caller (the
// board dealer) is responsible for treating that as ErrNotEnoughWords.
func (l *List) Words(n int) ([]string, error) {
	if n > len(l.words) {
		n = len(l.words)
	}
	idx := make([]int, len(l.words))
	for i := range idx {
		idx[i] = i
	}

	rng, err := seededRand()
	if err != nil {
		return nil, err
	}
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = l.words[idx[i]]
	}
	return out, nil
}

func seededRand() (*mrand.Rand, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]))
	return mrand.New(mrand.NewSource(seed)), nil
}
