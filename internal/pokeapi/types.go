package pokeapi

// NamedResource is a reference to another PokeAPI resource.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListResponse is the paginated /pokemon response.
type ListResponse struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []NamedResource `json:"results"`
}

type Pokemon struct {
	ID      int        `json:"id"`
	Name    string     `json:"name"`
	Sprites Sprites    `json:"sprites"`
	Stats   []Stat     `json:"stats"`
	Types   []TypeSlot `json:"types"`
	Height  int        `json:"height"`
	Weight  int        `json:"weight"`
	Cries   Cries      `json:"cries"`
}

type Sprites struct {
	FrontDefault string          `json:"front_default"`
	FrontShiny   string          `json:"front_shiny"`
	Other        OtherSprites    `json:"other"`
	Versions     *SpriteVersions `json:"versions,omitempty"`
}

type OtherSprites struct {
	OfficialArtwork struct {
		FrontDefault string `json:"front_default"`
	} `json:"official-artwork"`
}

// SpriteVersions keeps only the animated Black/White sprites.
type SpriteVersions struct {
	GenerationV *struct {
		BlackWhite *struct {
			Animated *struct {
				FrontDefault *string `json:"front_default"`
				FrontShiny   *string `json:"front_shiny"`
			} `json:"animated,omitempty"`
		} `json:"black-white,omitempty"`
	} `json:"generation-v,omitempty"`
}

type Stat struct {
	BaseStat int `json:"base_stat"`
	Stat     struct {
		Name string `json:"name"`
	} `json:"stat"`
}

type TypeSlot struct {
	Type struct {
		Name string `json:"name"`
	} `json:"type"`
}

type Cries struct {
	Latest string `json:"latest"`
	Legacy string `json:"legacy"`
}

type Species struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	FlavorTextEntries []FlavorTextEntry `json:"flavor_text_entries"`
}

type FlavorTextEntry struct {
	FlavorText string        `json:"flavor_text"`
	Language   NamedResource `json:"language"`
	Version    NamedResource `json:"version"`
}

// LocationArea is one encounter location of a Pokémon.
type LocationArea struct {
	LocationArea NamedResource `json:"location_area"`
}
