// Package labels maps classifier output indices to plant and condition names.
package labels

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	Separator = "___"

	UnknownPlant           = "Unknown"
	UnrecognizedCondition  = "Unrecognized class"
	healthyMarker          = "healthy"
	percentageDisplayScale = 100
)

// Table is the output layer order of the plant disease model. The position of
// each entry is the class index the model was trained with.
var Table = [...]string{
	"Apple___Apple_scab",
	"Apple___Black_rot",
	"Apple___Cedar_apple_rust",
	"Apple___healthy",
	"Blueberry___healthy",
	"Cherry___Powdery_mildew",
	"Cherry___healthy",
	"Corn___Common_rust",
	"Corn___Gray_leaf_spot",
	"Corn___Northern_Leaf_Blight",
	"Corn___healthy",
	"Grape___Black_rot",
	"Grape___Esca_(Black_Measles)",
	"Grape___Leaf_blight_(Isariopsis_Leaf_Spot)",
	"Grape___healthy",
	"Orange___Citrus_greening",
	"Peach___Bacterial_spot",
	"Peach___healthy",
	"Pepper___Bacterial_spot",
	"Pepper___healthy",
	"Potato___Early_blight",
	"Potato___Late_blight",
	"Potato___healthy",
	"Raspberry___healthy",
	"Soybean___healthy",
	"Squash___Powdery_mildew",
	"Strawberry___Leaf_scorch",
	"Strawberry___healthy",
	"Tomato___Bacterial_spot",
	"Tomato___Early_blight",
	"Tomato___Late_blight",
	"Tomato___Leaf_Mold",
	"Tomato___Septoria_leaf_spot",
	"Tomato___Spider_mites_Two-spotted_spider_mite",
	"Tomato___Target_Spot",
	"Tomato___Tomato_Yellow_Leaf_Curl_Virus",
	"Tomato___Tomato_mosaic_virus",
	"Tomato___healthy",
}

// Len is the number of classes the model is expected to produce.
func Len() int {
	return len(Table)
}

// Resolution is the plant and condition a class index stands for.
type Resolution struct {
	Plant      string
	Condition  string
	Confidence float32
}

// Resolve maps a class index and its confidence to a plant and condition.
// Indices outside the table resolve to the unknown sentinel with zero
// confidence, the model's confidence is not carried over.
func Resolve(index int, confidence float32) Resolution {
	if index < 0 || index >= len(Table) {
		return Resolution{Plant: UnknownPlant, Condition: UnrecognizedCondition, Confidence: 0}
	}
	plant, condition := Split(Table[index])
	return Resolution{Plant: plant, Condition: condition, Confidence: confidence}
}

// Split separates a "plant___condition" label. A label without the separator
// is reported as a condition of an unknown plant.
func Split(label string) (plant, condition string) {
	plant, condition, ok := strings.Cut(label, Separator)
	if !ok {
		return UnknownPlant, label
	}
	return plant, condition
}

// Plants returns the distinct plant names of the table in table order.
func Plants() []string {
	seen := map[string]bool{}
	plants := []string{}
	for _, label := range Table {
		plant, _ := Split(label)
		if seen[plant] {
			continue
		}
		seen[plant] = true
		plants = append(plants, plant)
	}
	return plants
}

// CleanCondition turns a raw condition such as "Apple_scab" into "Apple Scab".
func CleanCondition(condition string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(condition, "_", " "))
}

// IsHealthy reports whether the condition names a healthy leaf.
func IsHealthy(condition string) bool {
	return strings.Contains(strings.ToLower(condition), healthyMarker)
}

// FormatConfidence renders a [0,1] confidence as a percentage with one decimal.
func FormatConfidence(confidence float32) string {
	return fmt.Sprintf("%.1f%%", float64(confidence)*percentageDisplayScale)
}
