package config

import "github.com/spf13/viper"

// Defaults match the classic manga workflow: split spreads above
// 3000px, resize to 1500px height, grayscale with a light unsharp
// pass.
func setDefaults(v *viper.Viper) {
	v.SetDefault("conversion.width_threshold", 3000)
	v.SetDefault("conversion.resize_height", 1500)
	v.SetDefault("conversion.quality", 85)
	v.SetDefault("conversion.grayscale", true)
	v.SetDefault("conversion.unsharp_radius", 1.5)
	v.SetDefault("conversion.unsharp_sigma", 1.0)
	v.SetDefault("conversion.unsharp_amount", 0.8)
	v.SetDefault("conversion.unsharp_threshold", 0.02)
	v.SetDefault("conversion.highres_threshold", 0)

	v.SetDefault("concurrency.workers", 0)
	v.SetDefault("concurrency.batch_size", 0)

	v.SetDefault("tools.graphicsmagick_path", "")

	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.log_dir", "./logs")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
}
