package game

import (
	"crypto/rand"
	"fmt"
)

// tokenAlphabet avoids characters that read ambiguously when a token is
// typed off a printed slip (no I, O, 0, 1).
const tokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomToken returns a crypto-random token of n characters.
func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = tokenAlphabet[int(buf[i])%len(tokenAlphabet)]
	}
	return string(out)
}

var nameAdjectives = []string{
	"Witty", "Sneaky", "Dizzy", "Mellow", "Rowdy", "Snappy", "Quirky",
	"Breezy", "Grumpy", "Jolly", "Nifty", "Peppy", "Sassy", "Zesty",
	"Drowsy", "Feisty", "Giddy", "Plucky", "Spiffy", "Wobbly",
}

var nameAnimals = []string{
	"Otter", "Badger", "Heron", "Lynx", "Marmot", "Puffin", "Gecko",
	"Walrus", "Ferret", "Magpie", "Newt", "Ocelot", "Stoat", "Tapir",
	"Wombat", "Beaver", "Condor", "Donkey", "Iguana", "Quokka",
}

// randomDisplayName assigns an audience member a readable name. taken maps
// already assigned names; collisions get a numeric suffix.
func randomDisplayName(taken map[string]bool) string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	base := nameAdjectives[int(buf[0])%len(nameAdjectives)] + " " + nameAnimals[int(buf[1])%len(nameAnimals)]
	name := base
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s %d", base, i)
	}
	taken[name] = true
	return name
}
