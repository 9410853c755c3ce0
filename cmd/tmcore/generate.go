package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/martinemde/tmcore/provider"
	"github.com/martinemde/tmcore/storage"
)

var generateFlags struct {
	provider    string
	model       string
	system      string
	temperature float64
	maxTokens   int
	stream      bool
	cache       bool
}

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a completion for a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.provider, "provider", "p", "", "provider to use (default from config)")
	f.StringVarP(&generateFlags.model, "model", "m", "", "model to use (default from config)")
	f.StringVar(&generateFlags.system, "system", "", "system prompt")
	f.Float64Var(&generateFlags.temperature, "temperature", provider.DefaultTemperature, "sampling temperature (0-2)")
	f.IntVar(&generateFlags.maxTokens, "max-tokens", provider.DefaultMaxTokens, "maximum tokens to generate")
	f.BoolVar(&generateFlags.stream, "stream", false, "stream the response")
	f.BoolVar(&generateFlags.cache, "cache", false, "read and write results through the configured storage")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(generateFlags.provider, generateFlags.model)
	if err != nil {
		return err
	}
	defer a.Close()

	prompt := strings.Join(args, " ")
	opts := provider.Options{
		Temperature: provider.Ptr(generateFlags.temperature),
		MaxTokens:   provider.Ptr(generateFlags.maxTokens),
		Timeout:     provider.Ptr(a.cfg.Retry.RequestTimeout),
	}
	if generateFlags.system != "" {
		opts.System = provider.Ptr(generateFlags.system)
	}

	var store storage.Storage
	key := cacheKey(a.engine.Provider().Name(), a.engine.Model(), prompt, opts)
	if generateFlags.cache {
		store, err = storage.Open(a.cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		if text, ok, err := store.Read(ctx, key); err != nil {
			a.logger.Warn("cache read failed", zap.Error(err))
		} else if ok {
			a.logger.Debug("cache hit", zap.String("key", key))
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}
	}

	text, err := generate(ctx, a.engine, cmd, prompt, opts)
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.Write(ctx, key, text); err != nil {
			a.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return nil
}

// generate runs the completion, printing as it goes when streaming, and
// returns the full text.
func generate(ctx context.Context, e *provider.Engine, cmd *cobra.Command, prompt string, opts provider.Options) (string, error) {
	out := cmd.OutOrStdout()

	if !generateFlags.stream {
		c, err := e.GenerateCompletion(ctx, prompt, opts)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(out, c.Text)
		return c.Text, nil
	}

	ch, err := e.GenerateStream(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	acc := provider.NewStreamAccumulator()
	for chunk := range ch {
		acc.Process(chunk)
		if chunk.Type == provider.ChunkDelta {
			fmt.Fprint(out, chunk.Delta)
		}
	}
	fmt.Fprintln(out)
	if err := acc.Err(); err != nil {
		return "", err
	}
	return acc.Completion().Text, nil
}

// cacheKey identifies a generation by provider, model, prompt, system prompt
// and the resolved sampling options.
func cacheKey(providerName, model, prompt string, opts provider.Options) string {
	system := ""
	if opts.System != nil {
		system = *opts.System
	}
	r := provider.MergeOptions(opts, 0)
	sampling := fmt.Sprintf("t=%g;max=%d;p=%g;fp=%g;pp=%g",
		r.Temperature, r.MaxTokens, r.TopP, r.FrequencyPenalty, r.PresencePenalty)

	h := sha256.New()
	for _, part := range []string{providerName, model, system, prompt, sampling} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "completion:" + hex.EncodeToString(h.Sum(nil))
}
