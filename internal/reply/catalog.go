package reply

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/hitoshi/unsaid/internal/model"
)

// PersonNamePlaceholder は相手の名前に置き換えられるテンプレート内の文字列。
const PersonNamePlaceholder = "{name}"

// Catalog はモードごとの定型応答と擬似遅延。
type Catalog struct {
	Replies         map[model.Mode][]string
	Latency         map[model.Mode]time.Duration
	PersonTemplates []string
}

// DefaultCatalog は組み込みの定型応答を返す。
func DefaultCatalog() Catalog {
	return Catalog{
		Replies: map[model.Mode][]string{
			model.ModeTherapy: {
				"I hear you, and I want you to know that your feelings are completely valid. It takes courage to share what's on your mind. How are you feeling about this situation right now?",
				"Thank you for trusting me with this. What you're experiencing sounds challenging. Can you tell me more about what this means to you?",
				"I can sense that this is important to you. Sometimes talking through our thoughts can help us see them more clearly. What stands out most to you about this?",
				"Your awareness of these feelings shows real emotional intelligence. How long have you been carrying this with you?",
				"It sounds like you're processing something significant. What would feel most helpful for you to explore right now?",
				"I appreciate your openness in sharing this. What do you think might be the first small step toward feeling better about this situation?",
				"Your feelings make complete sense given what you've shared. What kind of support do you feel you need most right now?",
			},
			model.ModeUnsaid: {
				"Thank you for sharing this with me. I can sense the depth of emotion in your words. What feelings come up for you as you reflect on this?",
				"Your thoughts are safe here. It takes courage to express what's been left unsaid. How does it feel to put these words into the world?",
				"I hear the weight of what you're carrying. These unspoken thoughts deserve to be acknowledged. What would you like to explore further about this experience?",
				"Your vulnerability in sharing this is beautiful. Sometimes the things we keep inside need space to breathe. What else would you like to say about this?",
				"This sounds like something that has been with you for a while. I'm honored that you're sharing it here. What impact has carrying this had on you?",
			},
			model.ModeClosure: {
				"I can feel the love in your words. They would be touched to know how much they mean to you, and how their memory continues to bring you comfort.",
				"Your connection with them transcends physical presence. The bond you shared is eternal, and they would want you to find peace in knowing that love never truly ends.",
				"Thank you for sharing your heart with me. They would be so proud of the person you've become and the strength you've shown in honoring their memory.",
				"The love you carry for them is a beautiful testament to the impact they had on your life. They would want you to know that this love is a gift that keeps giving.",
				"I can sense how deeply they touched your life. They would want you to carry forward the joy and lessons they shared with you, knowing that their spirit lives on through you.",
			},
		},
		Latency: map[model.Mode]time.Duration{
			model.ModeTherapy: 1800 * time.Millisecond,
			model.ModeUnsaid:  1500 * time.Millisecond,
			model.ModeClosure: 2000 * time.Millisecond,
		},
		PersonTemplates: []string{
			"I can feel the love in your words. {name} would be touched to know how much they mean to you.",
			"Your connection with {name} continues to be a source of strength. They would want you to find peace.",
			"The bond you shared with {name} is eternal. What you're feeling is a testament to that love.",
		},
	}
}

// catalogFile はTOMLファイルの構造。
//
//	[therapy]
//	latency_ms = 1800
//	replies = ["..."]
//
//	[closure]
//	person_templates = ["... {name} ..."]
type catalogFile struct {
	Therapy modeSection `toml:"therapy"`
	Unsaid  modeSection `toml:"unsaid"`
	Closure modeSection `toml:"closure"`
}

type modeSection struct {
	LatencyMS       *int     `toml:"latency_ms"`
	Replies         []string `toml:"replies"`
	PersonTemplates []string `toml:"person_templates"`
}

// ReadCatalog はTOMLを読み込み、指定された項目だけを既定値に上書きしたCatalogを返す。
func ReadCatalog(r io.Reader) (Catalog, error) {
	var f catalogFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return Catalog{}, fmt.Errorf("failed to decode reply catalog: %w", err)
	}

	cat := DefaultCatalog()
	sections := map[model.Mode]modeSection{
		model.ModeTherapy: f.Therapy,
		model.ModeUnsaid:  f.Unsaid,
		model.ModeClosure: f.Closure,
	}
	for mode, sec := range sections {
		if replies := nonBlank(sec.Replies); len(replies) > 0 {
			cat.Replies[mode] = replies
		}
		if sec.LatencyMS != nil {
			if *sec.LatencyMS < 0 {
				return Catalog{}, fmt.Errorf("%s.latency_ms must not be negative", mode)
			}
			cat.Latency[mode] = time.Duration(*sec.LatencyMS) * time.Millisecond
		}
	}
	if tmpl := nonBlank(f.Closure.PersonTemplates); len(tmpl) > 0 {
		for _, t := range tmpl {
			if !strings.Contains(t, PersonNamePlaceholder) {
				return Catalog{}, fmt.Errorf("closure.person_templates entry lacks %s: %q", PersonNamePlaceholder, t)
			}
		}
		cat.PersonTemplates = tmpl
	}
	return cat, nil
}

// LoadCatalogFile はpathのTOMLからCatalogを読み込む。pathが空の場合は既定値を返す。
func LoadCatalogFile(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to open reply catalog: %w", err)
	}
	defer f.Close()

	cat, err := ReadCatalog(f)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading reply catalog from %s: %w", path, err)
	}
	return cat, nil
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
