package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags a product variant. It is part of every product URL and of every
// cart line reference.
type Kind string

const (
	KindNotebook   Kind = "notebook"
	KindSmartphone Kind = "smartphone"
	KindComputer   Kind = "computer"
	KindMonitor    Kind = "monitor"
	KindTV         Kind = "tv"
	KindTablet     Kind = "tablet"
)

var Kinds = []Kind{KindNotebook, KindSmartphone, KindComputer, KindMonitor, KindTV, KindTablet}

// AllowedCategories restricts which categories a product of a given kind may be filed under.
var AllowedCategories = map[Kind][]string{
	KindNotebook:   {"notebooks"},
	KindSmartphone: {"smartphones"},
	KindComputer:   {"computers"},
	KindMonitor:    {"monitors"},
	KindTV:         {"tvs"},
	KindTablet:     {"tablets"},
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// AllowsCategory reports whether slug is a valid category for kind k.
func (k Kind) AllowsCategory(slug string) bool {
	for _, s := range AllowedCategories[k] {
		if s == slug {
			return true
		}
	}
	return false
}

type Category struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Slug      string `db:"slug" json:"slug"`
	CreatedAt string `db:"created_at" json:"-"`
}

func (c Category) URL() string { return "/category/" + c.Slug + "/" }

// CategoryCount is a category with the number of products filed under it,
// summed over all variant kinds.
type CategoryCount struct {
	Category
	Count int `db:"count" json:"count"`
}

type NotebookSpec struct {
	Diagonal          string `db:"diagonal" json:"diagonal"`
	DisplayType       string `db:"display_type" json:"display_type"`
	ProcessorFreq     string `db:"processor_freq" json:"processor_freq"`
	RAM               string `db:"ram" json:"ram"`
	Video             string `db:"video" json:"video"`
	TimeWithoutCharge string `db:"time_without_charge" json:"time_without_charge"`
}

type SmartphoneSpec struct {
	Diagonal    string `db:"diagonal" json:"diagonal"`
	DisplayType string `db:"display_type" json:"display_type"`
	Resolution  string `db:"resolution" json:"resolution"`
	AccumVolume string `db:"accum_volume" json:"accum_volume"`
	RAM         string `db:"ram" json:"ram"`
	SD          bool   `db:"sd" json:"sd"`
	SDVolumeMax string `db:"sd_volume_max" json:"sd_volume_max"`
	MainCamMP   string `db:"main_cam_mp" json:"main_cam_mp"`
	FrontCamMP  string `db:"front_cam_mp" json:"front_cam_mp"`
}

// Product holds the fields shared by every variant. At most one of the
// typed spec pointers is set, matching Kind; kinds without a typed spec
// describe themselves through category features.
type Product struct {
	ID          string          `db:"id"`
	Kind        Kind            `db:"kind"`
	CategoryID  string          `db:"category_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Image       string          `db:"image"`
	Price       decimal.Decimal `db:"price"`
	Slug        string          `db:"slug"`
	CreatedAt   string          `db:"created_at"`

	Notebook   *NotebookSpec   `db:"-"`
	Smartphone *SmartphoneSpec `db:"-"`
}

// ProductRef identifies exactly one product of exactly one variant.
type ProductRef struct {
	Kind Kind
	ID   string
}

func (p Product) Ref() ProductRef { return ProductRef{Kind: p.Kind, ID: p.ID} }

func (p Product) URL() string { return "/products/" + string(p.Kind) + "/" + p.Slug + "/" }

type SpecRow struct {
	Name  string
	Value string
}

// SpecRows flattens the typed variant attributes for display.
func (p Product) SpecRows() []SpecRow {
	switch {
	case p.Notebook != nil:
		n := p.Notebook
		return []SpecRow{
			{"Screen diagonal", n.Diagonal},
			{"Display type", n.DisplayType},
			{"Processor frequency", n.ProcessorFreq},
			{"RAM", n.RAM},
			{"Video card", n.Video},
			{"Battery life", n.TimeWithoutCharge},
		}
	case p.Smartphone != nil:
		s := p.Smartphone
		sd := "no"
		if s.SD {
			sd = "yes"
		}
		rows := []SpecRow{
			{"Screen size", s.Diagonal},
			{"Resolution", s.Resolution},
			{"Display type", s.DisplayType},
			{"RAM", s.RAM},
			{"SD card slot", sd},
		}
		if s.SD {
			rows = append(rows, SpecRow{"Max SD card size", s.SDVolumeMax})
		}
		return append(rows,
			SpecRow{"Main camera", s.MainCamMP},
			SpecRow{"Front camera", s.FrontCamMP},
			SpecRow{"Battery", s.AccumVolume},
		)
	}
	return nil
}
