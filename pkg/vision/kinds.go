package vision

// Kind is the closed set of supported image analysis kinds. Each kind maps
// to a fixed prompt template; adding a kind means adding a case to every
// switch over Kind, which the compiler can check.
type Kind int

const (
	// KindDescription asks for a general descriptive paragraph.
	KindDescription Kind = iota

	// KindObjectDetection asks for a structured list of visible objects.
	KindObjectDetection

	// KindTextExtraction asks for all text visible in the image.
	KindTextExtraction

	// KindSceneAnalysis asks about the setting, time, and activity.
	KindSceneAnalysis

	// KindColorAnalysis asks about dominant colors and color mood.
	KindColorAnalysis

	// KindEmotionAnalysis asks about expressions and emotional tone.
	KindEmotionAnalysis
)

// Wire names for each analysis kind, matching the request schema.
const (
	nameDescription     = "image_description"
	nameObjectDetection = "object_detection"
	nameTextExtraction  = "text_extraction"
	nameSceneAnalysis   = "scene_analysis"
	nameColorAnalysis   = "color_analysis"
	nameEmotionAnalysis = "emotion_analysis"
)

// KindFromString maps an external analysis-type string to a Kind.
// Unknown strings fall back to KindDescription.
func KindFromString(s string) Kind {
	switch s {
	case nameObjectDetection:
		return KindObjectDetection
	case nameTextExtraction:
		return KindTextExtraction
	case nameSceneAnalysis:
		return KindSceneAnalysis
	case nameColorAnalysis:
		return KindColorAnalysis
	case nameEmotionAnalysis:
		return KindEmotionAnalysis
	default:
		return KindDescription
	}
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindObjectDetection:
		return nameObjectDetection
	case KindTextExtraction:
		return nameTextExtraction
	case KindSceneAnalysis:
		return nameSceneAnalysis
	case KindColorAnalysis:
		return nameColorAnalysis
	case KindEmotionAnalysis:
		return nameEmotionAnalysis
	default:
		return nameDescription
	}
}

// prompt returns the canned prompt template for the kind.
func (k Kind) prompt() string {
	switch k {
	case KindObjectDetection:
		return `Identify and list all objects visible in this image. For each object, provide:
- Object name
- Approximate location (e.g., "top left", "center", "bottom right")
- Size relative to the image (small, medium, large)
- Any notable characteristics

Format as a structured list.`

	case KindTextExtraction:
		return `Extract all text visible in this image. Include:
- The exact text content
- Location of the text in the image
- Font style or appearance if notable
- Language if not English

If no text is visible, respond with "No text detected".`

	case KindSceneAnalysis:
		return `Analyze the scene in this image. Provide:
- Type of location/setting
- Time of day (if determinable)
- Weather conditions (if visible)
- Activity or event taking place
- Number of people (if any)
- Overall context and purpose

Be specific and detailed in your analysis.`

	case KindColorAnalysis:
		return `Analyze the colors in this image. Provide:
- Dominant colors
- Color scheme (warm, cool, monochromatic, etc.)
- Color distribution
- Any significant color contrasts
- Overall color mood or feeling

Use specific color names when possible.`

	case KindEmotionAnalysis:
		return `If there are people in this image, analyze:
- Facial expressions and emotions
- Body language
- Overall mood of the scene
- Emotional context

If no people are visible, analyze the emotional tone conveyed by the image itself.`

	default:
		return `Please provide a detailed description of this image. Include:
- Main subjects and objects
- Setting and environment
- Colors and composition
- Any text visible in the image
- Overall mood or atmosphere

Format your response as a clear, descriptive paragraph.`
	}
}
