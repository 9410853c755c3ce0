// Package provider is the execution contract between application code and a
// pluggable completion backend.
//
// # Architecture
//
// The package is split into three layers:
//
//   - Provider: the hook set every backend implements (Complete, Stream,
//     CountTokens, ValidateCredentials and friends). A Provider performs one
//     attempt and classifies its own failures into the failure taxonomy.
//   - Request shaping: MergeOptions overlays sparse Options on the defaults,
//     and ValidatePrompt and ValidateOptions enforce their ranges.
//   - Engine: shared orchestration. GenerateCompletion validates, merges,
//     and then runs the attempt through RetryWithBackoff.
//
// # Retry behaviour
//
// Decide is a pure function over the classified outcome of an attempt.
// Server errors and rate limits are retried, as are network failures (a
// status-less API failure or any error outside the taxonomy). Every other
// failure is returned unchanged after the first attempt. The delay before
// retry n is BaseDelay * BackoffMultiplier^n with no jitter.
//
// # Quick Start
//
//	adapter, _ := anthropicadapter.New(os.Getenv("ANTHROPIC_API_KEY"))
//	engine, _ := provider.NewEngine(adapter,
//	    provider.WithRetryConfig(cfg.Retry),
//	    provider.WithLogger(logger),
//	)
//
//	c, err := engine.GenerateCompletion(ctx, "Summarise the open tasks", provider.Options{
//	    Temperature: provider.Ptr(0.2),
//	})
//	if err != nil {
//	    fmt.Println(failure.UserFacing(err))
//	    return
//	}
//	fmt.Println(c.Text)
//
// # Model Catalog
//
// A built-in catalog of known models supplies provider defaults and pricing:
//
//	info := provider.GetModelInfo("sonnet")
//	models := provider.ListModels("openai")
//	model := provider.DefaultModelFor("anthropic")
package provider
