package platform

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/optiscope/pkg/fetcher"
)

// Shopify describes a Shopify storefront read from the runtime snapshot.
type Shopify struct {
	Detected bool             `json:"detected" yaml:"detected"`
	Shop     *ShopifyShop     `json:"shop,omitempty" yaml:"shop,omitempty"`
	Theme    *ShopifyTheme    `json:"theme,omitempty" yaml:"theme,omitempty"`
	Checkout *ShopifyCheckout `json:"checkout,omitempty" yaml:"checkout,omitempty"`
	Page     *ShopifyPage     `json:"page,omitempty" yaml:"page,omitempty"`
	Product  *ShopifyProduct  `json:"product,omitempty" yaml:"product,omitempty"`
	Customer *ShopifyCustomer `json:"customer,omitempty" yaml:"customer,omitempty"`
	Error    string           `json:"error,omitempty" yaml:"error,omitempty"`
}

type ShopifyShop struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Locale   string `json:"locale,omitempty" yaml:"locale,omitempty"`
	Country  string `json:"country,omitempty" yaml:"country,omitempty"`
}

type ShopifyTheme struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

type ShopifyCheckout struct {
	Step string `json:"step,omitempty" yaml:"step,omitempty"`
	Page string `json:"page,omitempty" yaml:"page,omitempty"`
}

type ShopifyPage struct {
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	ResourceType string `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty" yaml:"resourceId,omitempty"`
}

type ShopifyProduct struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
}

type ShopifyCustomer struct {
	LoggedIn bool `json:"loggedIn" yaml:"loggedIn"`
}

// DetectShopify reads the Shopify, ShopifyAnalytics.meta and __st globals.
// It returns nil when the page is not a Shopify storefront.
func DetectShopify(rt *fetcher.Runtime) *Shopify {
	shop, hasShop := rt.Namespace(fetcher.NamespaceShopify)
	analytics, hasAnalytics := rt.Namespace(fetcher.NamespaceShopifyAnalytics)
	if !hasShop && !hasAnalytics {
		return nil
	}

	s := &Shopify{Detected: true}
	if hasShop {
		v := gjson.ParseBytes(shop)
		s.Shop = &ShopifyShop{
			Name:     v.Get("shop").String(),
			Currency: v.Get("currency.active").String(),
			Locale:   v.Get("locale").String(),
			Country:  v.Get("country").String(),
		}
		if t := v.Get("theme"); t.Exists() {
			s.Theme = &ShopifyTheme{
				ID:   t.Get("id").String(),
				Name: t.Get("name").String(),
				Role: t.Get("role").String(),
			}
		}
		if c := v.Get("Checkout"); c.IsObject() {
			s.Checkout = &ShopifyCheckout{
				Step: c.Get("step").String(),
				Page: c.Get("page").String(),
			}
		}
	}

	if hasAnalytics {
		meta := gjson.GetBytes(analytics, "meta")
		if p := meta.Get("page"); p.Exists() {
			s.Page = &ShopifyPage{
				Type:         p.Get("pageType").String(),
				ResourceType: p.Get("resourceType").String(),
				ResourceID:   p.Get("resourceId").String(),
			}
		}
		if p := meta.Get("product"); p.IsObject() {
			s.Product = &ShopifyProduct{
				ID:     p.Get("id").String(),
				Vendor: p.Get("vendor").String(),
				Type:   p.Get("type").String(),
			}
		}
	}

	if st, ok := rt.Namespace(fetcher.NamespaceShopifyST); ok {
		cid := gjson.GetBytes(st, "cid").String()
		s.Customer = &ShopifyCustomer{LoggedIn: cid != "" && cid != "0"}
	}

	var errs []string
	for _, ns := range []string{fetcher.NamespaceShopify, fetcher.NamespaceShopifyAnalytics, fetcher.NamespaceShopifyST} {
		if msg := rt.Err(ns); msg != "" {
			errs = append(errs, ns+": "+msg)
		}
	}
	s.Error = strings.Join(errs, "; ")
	return s
}
