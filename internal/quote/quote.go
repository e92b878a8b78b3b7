// Package quote はホーム画面に表示する引用句を提供する。
package quote

import (
	"math/rand/v2"
)

// Quote は引用句とその出典。
type Quote struct {
	Text   string
	Source string
}

// String は「"本文" - 出典」の形式で返す。
func (q Quote) String() string {
	return `"` + q.Text + `" - ` + q.Source
}

// defaultQuotes はアニメ・ドラマ・映画からの引用句。
var defaultQuotes = []Quote{
	{"It's not the face that makes someone a monster; it's the choices they make with their lives.", "Naruto"},
	{"No matter how deep the night, it always turns to day, eventually.", "Brook, One Piece"},
	{"If you don't take risks, you can't create a future.", "Monkey D. Luffy, One Piece"},
	{"I'm not a cat. I'm Kuro-sensei!", "Koro-sensei, Assassination Classroom"},
	{"People die if they are killed.", "Emiya Shirou, Fate/stay night"},
	{"Omae wa mou shindeiru.", "Kenshiro, Hokuto no Ken"},
	{"I am the one who knocks.", "Walter White, Breaking Bad"},
	{"Winter is coming.", "Ned Stark, Game of Thrones"},
	{"I'm not a psychopath, Anderson, I'm a high-functioning sociopath.", "Sherlock Holmes, Sherlock"},
	{"I'm the king of the world!", "Jack Dawson, Titanic"},
	{"You miss 100% of the shots you don't take. - Wayne Gretzky", "Michael Scott, The Office"},
	{"May the Force be with you.", "Star Wars"},
	{"Here's looking at you, kid.", "Casablanca"},
	{"You can't handle the truth!", "A Few Good Men"},
	{"I'll be back.", "The Terminator"},
	{"Life is like a box of chocolates.", "Forrest Gump"},
}

// Picker は引用句を無作為に選ぶ。
type Picker struct {
	quotes []Quote
	intN   func(n int) int
}

// NewPicker はPickerを生成する。quotesが空の場合は組み込みの引用句を使う。
func NewPicker(quotes []Quote) *Picker {
	if len(quotes) == 0 {
		quotes = defaultQuotes
	}
	return &Picker{quotes: quotes, intN: rand.IntN}
}

// Random は引用句を1つ返す。
func (p *Picker) Random() Quote {
	return p.quotes[p.intN(len(p.quotes))]
}
