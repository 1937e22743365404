package game

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SnapshotSchemaVersion is bumped whenever the persisted engine layout
// changes incompatibly; older blobs then fail validation and are treated as
// absent.
const SnapshotSchemaVersion = 1

type engineSnapshot struct {
	SchemaVersion    int         `json:"schema_version"`
	State            TableState  `json:"state"`
	Deck             []Card      `json:"deck"`
	HandDeck         []Card      `json:"hand_deck,omitempty"`
	RemovedPlayerIDs []string    `json:"removed_player_ids"`
	PreviewCount     int         `json:"preview_count"`
	RunCount         int         `json:"run_count"`
	LastResult       *HandResult `json:"last_result,omitempty"`
}

const snapshotSchemaJSON = `{
  "type": "object",
  "required": ["schema_version", "state", "deck"],
  "properties": {
    "schema_version": {"const": 1},
    "state": {
      "type": "object",
      "required": ["table_id", "players", "small_blind", "big_blind"],
      "properties": {
        "table_id": {"type": "string", "minLength": 1},
        "players": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "seat", "stack"],
            "properties": {
              "id": {"type": "string", "minLength": 1},
              "seat": {"type": "integer"},
              "stack": {"type": "integer", "minimum": 0},
              "hole_cards": {"type": ["array", "null"], "items": {"$ref": "#/$defs/card"}}
            }
          }
        },
        "small_blind": {"type": "number", "minimum": 0},
        "big_blind": {"type": "number", "minimum": 0},
        "community_cards": {"type": ["array", "null"], "maxItems": 5, "items": {"$ref": "#/$defs/card"}}
      }
    },
    "deck": {"type": ["array", "null"], "maxItems": 52, "items": {"$ref": "#/$defs/card"}},
    "hand_deck": {"type": ["array", "null"], "maxItems": 52, "items": {"$ref": "#/$defs/card"}},
    "removed_player_ids": {"type": ["array", "null"], "items": {"type": "string"}},
    "preview_count": {"type": "integer", "minimum": 0},
    "run_count": {"type": "integer", "minimum": 0, "maximum": 3}
  },
  "$defs": {
    "card": {"type": "string", "pattern": "^[2-9TJQKA][shdc]$"}
  }
}`

var snapshotSchema = mustCompileSnapshotSchema()

func mustCompileSnapshotSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("engine_snapshot.schema.json", strings.NewReader(snapshotSchemaJSON)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("engine_snapshot.schema.json")
}

func (e *Engine) Serialize() ([]byte, error) {
	snap := engineSnapshot{
		SchemaVersion:    SnapshotSchemaVersion,
		State:            e.state.Clone(),
		RemovedPlayerIDs: append([]string{}, e.removedPlayerIDs...),
		PreviewCount:     e.previewCount,
		RunCount:         e.runCount,
		LastResult:       e.lastResult,
		HandDeck:         cloneCards(e.handDeck),
	}
	if e.deck != nil {
		snap.Deck = e.deck.Remaining()
	}
	return json.Marshal(snap)
}

// ValidateSnapshot checks a persisted blob against the snapshot schema
// without building an engine.
func ValidateSnapshot(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := snapshotSchema.Validate(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return nil
}

// RestoreEngine rebuilds an engine from Serialize output. Any blob that does
// not validate is rejected with ErrInvalidSnapshot.
func RestoreEngine(data []byte, opts ...Option) (TableEngine, error) {
	if err := ValidateSnapshot(data); err != nil {
		return nil, err
	}
	var snap engineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	st := snap.State
	cfg := EngineConfig{
		TableID:     st.TableID,
		SmallBlind:  st.SmallBlind,
		BigBlind:    st.BigBlind,
		Variant:     st.Variant,
		BettingMode: st.BettingMode,
	}
	if st.Variant.IsStud() {
		stud := NewStudEngine(cfg, opts...)
		stud.restore(snap)
		return stud, nil
	}
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	e.restore(snap)
	return e, nil
}

func (e *Engine) restore(snap engineSnapshot) {
	st := snap.State
	if st.Players == nil {
		st.Players = []Player{}
	}
	if st.CommunityCards == nil {
		st.CommunityCards = []Card{}
	}
	e.state = st
	if snap.Deck != nil || e.handInProgress() {
		e.deck = NewDeckFrom(snap.Deck)
	}
	e.handDeck = snap.HandDeck
	e.removedPlayerIDs = snap.RemovedPlayerIDs
	e.previewCount = snap.PreviewCount
	e.runCount = snap.RunCount
	e.lastResult = snap.LastResult
}
