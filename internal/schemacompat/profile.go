package schemacompat

// Profile describes the schema dialect one provider's strict mode accepts,
// both as pipeline switches for ForProvider and as the rules Check enforces
// on the final tree.
type Profile struct {
	Name string

	// DropUnions keeps only the first anyOf/oneOf/allOf variant.
	DropUnions bool

	// StrictObjects closes objects and requires all declared keys.
	StrictObjects bool

	// ConvertTypeArrays turns type arrays and nullable:true into anyOf.
	ConvertTypeArrays bool

	// AllowTypeArrays suppresses the Check violation for type arrays and
	// nullable annotations.
	AllowTypeArrays bool

	// UnsupportedKeywords are removed from every node.
	UnsupportedKeywords []string
}

// numericAndSizeKeywords are the constraint keywords OpenAI-style strict
// modes reject outright.
var numericAndSizeKeywords = []string{
	"minimum", "maximum",
	"exclusiveMinimum", "exclusiveMaximum",
	"multipleOf",
	"minItems", "maxItems",
	"minLength", "maxLength",
	"pattern", "format",
	"default",
	"$schema",
}

// ProfileOpenAI covers OpenAI-compatible strict structured outputs,
// including Groq's implementation of the same dialect.
var ProfileOpenAI = Profile{
	Name:                "openai",
	DropUnions:          true,
	StrictObjects:       true,
	UnsupportedKeywords: numericAndSizeKeywords,
}

// ProfileGroq is the Groq variant of the OpenAI dialect.
var ProfileGroq = Profile{
	Name:                "groq",
	DropUnions:          true,
	StrictObjects:       true,
	UnsupportedKeywords: numericAndSizeKeywords,
}

// ProfileCerebras keeps unions (Cerebras supports anyOf but not type arrays
// or nullable) and closes objects.
var ProfileCerebras = Profile{
	Name:                "cerebras",
	StrictObjects:       true,
	ConvertTypeArrays:   true,
	UnsupportedKeywords: numericAndSizeKeywords,
}

// ProfileVertex is the most permissive: Gemini's responseJsonSchema takes
// draft schemas nearly verbatim, so only refs are resolved.
var ProfileVertex = Profile{
	Name:                "vertex",
	AllowTypeArrays:     true,
	UnsupportedKeywords: []string{"$schema"},
}
