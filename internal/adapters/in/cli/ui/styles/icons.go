package styles

// Plain unicode glyphs so output stays readable without a patched font.
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconInfo    = "i"
	IconSkipped = "-"
	IconBullet  = "▸"
	IconArrow   = "→"
)
