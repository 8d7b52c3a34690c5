package predictor

// Classifier AKI 判定器：特征向量 → 二值评分
type Classifier interface {
	// Predict 返回 1 表示检出 AKI，0 表示未检出
	Predict(features Features) int
}

// RuleClassifier 基于肌酐规则的判定器：
//   - 最新值相对基线（均值）上升超过 RatioThreshold 倍
//   - 或最新值超过绝对阈值 AbsoluteThreshold
type RuleClassifier struct {
	RatioThreshold    float64 // 相对基线上升倍数
	AbsoluteThreshold float64 // 绝对肌酐阈值（μmol/L）
}

var _ Classifier = (*RuleClassifier)(nil)

// NewDefaultClassifier 参考行为的默认阈值
func NewDefaultClassifier() *RuleClassifier {
	return &RuleClassifier{
		RatioThreshold:    1.5,
		AbsoluteThreshold: 200,
	}
}

// Predict 纯函数判定
func (c *RuleClassifier) Predict(f Features) int {
	if f.LatestCreatinine >= c.AbsoluteThreshold {
		return 1
	}
	if f.CreatinineMean > 0 && f.LatestCreatinine/f.CreatinineMean >= c.RatioThreshold {
		return 1
	}
	return 0
}
