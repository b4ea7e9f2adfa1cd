package featureflag

type Flag string

const (
	FlagDisableSimplify  Flag = "DISABLE_SIMPLIFY"
	FlagDisableDuplicate Flag = "DISABLE_DUPLICATE"
	FlagDisableColors    Flag = "DISABLE_COLORS"
)
