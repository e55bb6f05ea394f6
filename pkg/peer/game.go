package peer

import (
	"twister/pkg/mt19937"
	"twister/pkg/proto"
)

// game is the per-connection state: one generator, one running score.
type game struct {
	id       string
	gen      *mt19937.Generator
	rng      uint32
	target   int
	flag     string
	score    int
	rounds   int
	flagSent bool
}

func newGame(id string, seed uint32, rng uint32, target int, flag string) *game {
	return &game{
		id:     id,
		gen:    mt19937.New(seed),
		rng:    rng,
		target: target,
		flag:   flag,
	}
}

// play draws the next secret and judges number against it. A correct guess
// extends the streak; an incorrect one resets it. The flag message is
// returned once, on the round the streak first reaches the target.
func (g *game) play(number int) (*proto.GuessResult, *proto.FlagMessage) {
	g.rounds++
	raw := g.gen.Uint32()
	secret := int(mt19937.GuessRange(raw, g.rng))

	res := &proto.GuessResult{
		Type:    proto.TypeGuessResult,
		GuessID: raw,
		Number:  secret,
	}
	if number == secret {
		g.score++
		res.Result = proto.ResultCorrect
	} else {
		g.score = 0
		res.Result = proto.ResultIncorrect
	}
	res.Score = g.score

	if g.score == g.target && !g.flagSent {
		g.flagSent = true
		return res, &proto.FlagMessage{Type: proto.TypeFlag, Flag: g.flag}
	}
	return res, nil
}
