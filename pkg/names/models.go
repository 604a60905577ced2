package names

// Category is a top-level grouping of names in the upstream API
type Category string

const (
	Islamic   Category = "islamic"
	Hindu     Category = "hindu"
	Christian Category = "christian"
)

// Categories returns the categories in processing order. The order is part
// of the checkpoint format and must not change.
func Categories() []Category {
	return []Category{Islamic, Hindu, Christian}
}

func (c Category) String() string {
	return string(c)
}

// Record is a single name entry returned by the API
type Record struct {
	Slug     string
	Category Category
}

// Page is one page of records for a category
type Page struct {
	Records     []Record
	HasNextPage bool
}

// Empty reports whether the page carries no records
func (p *Page) Empty() bool {
	return p == nil || len(p.Records) == 0
}

// namesResponse mirrors the upstream JSON body. Every level is optional.
type namesResponse struct {
	Data *struct {
		Names []struct {
			Slug string `json:"slug"`
		} `json:"names"`
		Pagination *struct {
			HasNextPage bool `json:"hasNextPage"`
		} `json:"pagination"`
	} `json:"data"`
}
