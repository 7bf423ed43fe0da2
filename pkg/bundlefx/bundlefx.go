package bundlefx

import (
	"github.com/joeydtaylor/tbmux/pkg/middleware/auth"
	"github.com/joeydtaylor/tbmux/pkg/middleware/logger"
	"github.com/joeydtaylor/tbmux/pkg/middleware/metrics"
	"go.uber.org/fx"
)

// Module bundles the middleware providers for hosts that build their own
// router around the instance routes. It expects a manifest.Config in the graph.
var Module = fx.Options(
	auth.Module,
	logger.Module,
	metrics.Module,
)
