package domain

// CategoryFeature is a named characteristic shared by the products of one
// category. FilterName is the query parameter used to filter the category page.
type CategoryFeature struct {
	ID          string `db:"id" json:"id"`
	CategoryID  string `db:"category_id" json:"category_id"`
	FeatureName string `db:"feature_name" json:"feature_name"`
	FilterName  string `db:"filter_name" json:"filter_name"`
	Unit        string `db:"unit" json:"unit"`
}

// FeatureValidator is one permitted value of a feature.
type FeatureValidator struct {
	ID        string `db:"id"`
	FeatureID string `db:"feature_id"`
	Value     string `db:"value"`
}

type ProductFeature struct {
	ProductID   string `db:"product_id"`
	FeatureID   string `db:"feature_id"`
	FeatureName string `db:"feature_name"`
	Unit        string `db:"unit"`
	Value       string `db:"value"`
}

func (f ProductFeature) Display() string {
	if f.Unit == "" {
		return f.Value
	}
	return f.Value + " " + f.Unit
}
