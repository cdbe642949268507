package entities

// Attribute names a field of an EnrichmentResult.
type Attribute string

const (
	AttrSummary     Attribute = "summary"
	AttrTags        Attribute = "tags"
	AttrModel       Attribute = "model"
	AttrTerm        Attribute = "term"
	AttrDescription Attribute = "description"
	AttrLabels      Attribute = "labels"
	AttrLinks       Attribute = "links"
	AttrTypeLists   Attribute = "type_lists"
)

// TagProperty as a property name turns the field into tags on the node.
const TagProperty = "TAG"

// FieldMapping ties result attributes to document property names and names
// the aspect that must be present for those properties to be valid.
// Attributes mapped to "" are not persisted.
type FieldMapping struct {
	Aspect     string
	Properties map[Attribute]string
}

// Property returns the configured property for attr, or "".
func (m FieldMapping) Property(attr Attribute) string {
	return m.Properties[attr]
}
