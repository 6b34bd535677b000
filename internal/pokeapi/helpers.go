package pokeapi

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

var pokemonURLPattern = regexp.MustCompile(`/pokemon/(\d+)/`)

// IDFromURL extracts the numeric id of a /pokemon/{id}/ URL, or 0.
func IDFromURL(url string) int {
	m := pokemonURLPattern.FindStringSubmatch(url)
	if m == nil {
		return 0
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return id
}

// FormatName upper-cases the first letter of name.
func FormatName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

var typeColors = map[string]string{
	"normal":   "#A8A878",
	"fire":     "#F08030",
	"water":    "#6890F0",
	"electric": "#F8D030",
	"grass":    "#78C850",
	"ice":      "#98D8D8",
	"fighting": "#C03028",
	"poison":   "#A040A0",
	"ground":   "#E0C068",
	"flying":   "#A890F0",
	"psychic":  "#F85888",
	"bug":      "#A8B820",
	"rock":     "#B8A038",
	"ghost":    "#705898",
	"dragon":   "#7038F8",
	"dark":     "#705848",
	"steel":    "#B8B8D0",
	"fairy":    "#EE99AC",
}

// TypeColor returns the display color of a type name.
func TypeColor(typeName string) string {
	if c, ok := typeColors[strings.ToLower(typeName)]; ok {
		return c
	}
	return "#777"
}

// FetchInBatches calls fn for every id, running up to size calls at a time
// and finishing each batch before starting the next. Results keep the order
// of ids. The first error cancels the current batch and is returned.
func FetchInBatches[T any](ctx context.Context, ids []int, size int, fn func(ctx context.Context, id int) (T, error)) ([]T, error) {
	if size < 1 {
		size = 1
	}

	results := make([]T, len(ids))
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				v, err := fn(gctx, ids[i])
				if err != nil {
					return err
				}
				results[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Range returns the ids 1 through n, or none when n < 1.
func Range(n int) []int {
	if n < 1 {
		return []int{}
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}
