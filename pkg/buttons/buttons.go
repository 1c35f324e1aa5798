package buttons

import "fmt"

// Category is one of the six fixed button types a participant can press.
type Category string

const (
	Skill1 Category = "skill1"
	Skill2 Category = "skill2"
	Skill3 Category = "skill3"
	Enemy1 Category = "enemy1"
	Enemy2 Category = "enemy2"
	Enemy3 Category = "enemy3"
)

// All lists every category in the order batches are built and stats are reported.
var All = []Category{Enemy1, Enemy2, Enemy3, Skill1, Skill2, Skill3}

var labels = map[Category]string{
	Skill1: "Skill button 1",
	Skill2: "Skill button 2",
	Skill3: "Skill button 3",
	Enemy1: "Enemy button 1",
	Enemy2: "Enemy button 2",
	Enemy3: "Enemy button 3",
}

func (c Category) Valid() bool {
	_, exists := labels[c]
	return exists
}

func (c Category) IsSkill() bool {
	return c == Skill1 || c == Skill2 || c == Skill3
}

func (c Category) IsEnemy() bool {
	return c == Enemy1 || c == Enemy2 || c == Enemy3
}

// Label is the human readable name used in result listings.
func (c Category) Label() string {
	label, exists := labels[c]
	if exists {
		return label
	}
	return string(c)
}

func Parse(name string) (Category, error) {
	c := Category(name)
	if !c.Valid() {
		return "", fmt.Errorf("unknown button category %q", name)
	}
	return c, nil
}
