package locale

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := LoadRegistry("is_IS")
	require.NoError(t, err)
	return reg
}

func TestRegistryLoadsEmbeddedLocales(t *testing.T) {
	reg := loadTestRegistry(t)
	assert.Equal(t, []string{"en_GB", "en_US", "is_IS"}, reg.Codes())
	assert.Equal(t, "is_IS", reg.Default().Code)

	_, err := LoadRegistry("xx_XX")
	assert.Error(t, err)
}

func TestRegistryResolution(t *testing.T) {
	reg := loadTestRegistry(t)

	assert.Equal(t, "en_US", reg.Get("en_US").Code)
	// Unknown region falls back to the first locale of the language.
	assert.Equal(t, "en", reg.Get("en_AU").Language)
	// Unknown language falls back to the registry default.
	assert.Equal(t, "is_IS", reg.Get("pl_PL").Code)
}

func TestBagSizes(t *testing.T) {
	reg := loadTestRegistry(t)

	assert.Equal(t, 100, reg.Get("en_US").Bag(false).BagSize())
	is := reg.Get("is_IS")
	assert.Equal(t, 104, is.Bag(false).BagSize())
	// The newbag option selects the revised Icelandic distribution.
	assert.NotSame(t, is.Bag(false), is.Bag(true))
	// Locales without a second bag ignore the option.
	en := reg.Get("en_US")
	assert.Same(t, en.Bag(false), en.Bag(true))
}

func TestWordScoreWithBlanks(t *testing.T) {
	reg := loadTestRegistry(t)
	ts := reg.Get("en_US").Bag(false)

	assert.Equal(t, 5, ts.WordScore("cat"))
	// A blank carries its letter for 0 points.
	assert.Equal(t, 2, ts.WordScore("?cat"))
	assert.Equal(t, 0, ts.WordScore("?c?a?t"))
}

func TestRackScoreBlankOrderIndependent(t *testing.T) {
	reg := loadTestRegistry(t)
	ts := reg.Get("en_US").Bag(false)

	// A rack blank is a standalone tile worth 0, not a pair prefix: the
	// rack's value must not depend on where the blank sits.
	assert.Equal(t, 1, ts.RackScore("?a"))
	assert.Equal(t, 1, ts.RackScore("a?"))
	assert.Equal(t, ts.RackScore("?catsre"), ts.RackScore("catsre?"))
	assert.Equal(t, 8, ts.RackScore("?catsre"))
}

func TestBagDrawReturnExchange(t *testing.T) {
	reg := loadTestRegistry(t)
	ts := reg.Get("en_US").Bag(false)
	rng := rand.New(rand.NewSource(1))

	b := NewBag(ts, rng)
	assert.Equal(t, 100, b.Size())

	rack := b.Draw(RackSize)
	assert.Len(t, rack, RackSize)
	assert.Equal(t, 93, b.Size())

	b.Return(rack[:3])
	assert.Equal(t, 96, b.Size())

	// Draw never returns more than the bag holds.
	rest := b.Draw(200)
	assert.Len(t, rest, 96)
	assert.Equal(t, 0, b.Size())
	assert.False(t, b.AllowsExchange())
}

func TestRestoreBagAccounting(t *testing.T) {
	reg := loadTestRegistry(t)
	ts := reg.Get("en_US").Bag(false)
	rng := rand.New(rand.NewSource(1))

	// 14 tiles in racks plus 3 on the board leave 83 in the bag.
	used := []rune("aeinrst" + "aeinrst" + "cat")
	b, err := RestoreBag(ts, used, rng)
	require.NoError(t, err)
	assert.Equal(t, 83, b.Size())

	// Claiming more copies of a tile than the bag holds is an error.
	over := make([]rune, 0, 3)
	for i := 0; i < 3; i++ {
		over = append(over, 'z') // only one z in the bag
	}
	_, err = RestoreBag(ts, over, rng)
	assert.Error(t, err)
}

func TestStandardLayoutPremiums(t *testing.T) {
	bl := Layout("standard")

	// Corners are triple words; the start square doubles the word.
	assert.Equal(t, 3, bl.WordMultiplier(0, 0))
	assert.Equal(t, 3, bl.WordMultiplier(14, 14))
	assert.Equal(t, 2, bl.WordMultiplier(CenterRow, CenterCol))
	assert.Equal(t, 1, bl.LetterMultiplier(CenterRow, CenterCol))
	// Double letter beside the start row, plain square elsewhere.
	assert.Equal(t, 2, bl.LetterMultiplier(7, 3))
	assert.Equal(t, 1, bl.WordMultiplier(7, 1))

	// Unknown board types resolve to the standard layout.
	assert.Same(t, bl, Layout("nonesuch"))
}

func TestAlphabetNormalizeAndOrder(t *testing.T) {
	reg := loadTestRegistry(t)
	a := reg.Get("is_IS").Alphabet

	low, err := a.Normalize("HÚS")
	require.NoError(t, err)
	assert.Equal(t, "hús", low)

	_, err = a.Normalize("house") // no w in Icelandic
	assert.Error(t, err)

	// ð sorts after d in the Icelandic alphabet, unlike code-point order.
	assert.True(t, a.Less("dagur", "ðagur"))
	assert.True(t, a.Less("hús", "húsið"))
}
