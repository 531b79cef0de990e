// Package logging provides structured logging for troubleshootd.
//
// It wraps Zap with:
//   - a Trace level below Debug
//   - stdout and OpenTelemetry outputs
//   - correlation fields pulled from the context (trace, request, error, actor)
//   - redaction of credentials that captured error messages tend to carry
//   - level-aware sampling (errors are never sampled)
//
// Core services take a plain *zap.Logger; obtain one with Logger.Underlying.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithErrorID(ctx, "err_42")
//	logger.Info(ctx, "suggestions served", zap.Int("kb_matches", 2))
package logging
