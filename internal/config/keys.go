package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "FOOODIS_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "FOOODIS_OLLAMA_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
	},
	{
		env: "FOOODIS_OLLAMA_EMBED_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
	},
	{
		env: "FOOODIS_OPENAI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
	},
	{
		env: "FOOODIS_OPENAI_EMBED_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
	},
	{
		env: "FOOODIS_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "FOOODIS_DEFAULT_LANGUAGE", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Chatbot.DefaultLanguage = v.(string) },
	},
	{
		env: "FOOODIS_RECALL_TOP_K", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Chatbot.RecallTopK = v.(int) },
	},
	{
		env: "FOOODIS_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

// A variable explicitly set to the empty string clears a string default
// (e.g. FOOODIS_OLLAMA_BASE_URL="" disables the local Ollama fallback);
// unset variables leave the default in place.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw, set := os.LookupEnv(s.env)
		if !set {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if raw == "" {
				continue
			}
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
