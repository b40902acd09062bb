package s3_model

import (
	"fmt"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// ClassThreshold is the probability at or above which class 1 is predicted
const ClassThreshold = 0.5

// Evaluate computes classification metrics of probabilities against labels.
// Precision, recall and F1 are 0 when undefined; AUC is 0.5 with a single class.
func Evaluate(labels []int, probs []float64) (contracts.ModelMetrics, error) {
	var m contracts.ModelMetrics
	if len(labels) != len(probs) {
		return m, fmt.Errorf("evaluate: %d labels but %d probabilities", len(labels), len(probs))
	}
	if len(labels) == 0 {
		return m, fmt.Errorf("evaluate: no rows")
	}

	var tp, fp, tn, fn int
	for i, label := range labels {
		predicted := 0
		if probs[i] >= ClassThreshold {
			predicted = 1
		}
		switch {
		case predicted == 1 && label == 1:
			tp++
		case predicted == 1 && label == 0:
			fp++
		case predicted == 0 && label == 0:
			tn++
		default:
			fn++
		}
	}

	m.Accuracy = float64(tp+tn) / float64(len(labels))
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.AUC = AUC(labels, probs)

	return m, nil
}

// AUC returns the area under the ROC curve
func AUC(labels []int, probs []float64) float64 {
	positives := 0
	for _, label := range labels {
		positives += label
	}
	if positives == 0 || positives == len(labels) {
		return 0.5
	}

	scores := make([]float64, len(probs))
	copy(scores, probs)
	classes := make([]bool, len(labels))
	for i, label := range labels {
		classes[i] = label == 1
	}
	stat.SortWeightedLabeled(scores, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
