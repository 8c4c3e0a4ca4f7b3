// Package autoload registers every built-in channel factory via side effect.
package autoload

import (
	_ "monarch/pkg/channels/telegram"
	_ "monarch/pkg/channels/web"
)
