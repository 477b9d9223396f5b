package dnd5e

// Ability keys
const (
	AbilityStrength     = "str"
	AbilityDexterity    = "dex"
	AbilityConstitution = "con"
	AbilityIntelligence = "int"
	AbilityWisdom       = "wis"
	AbilityCharisma     = "cha"
)

// Abilities lists the six ability keys in sheet order
var Abilities = []string{
	AbilityStrength,
	AbilityDexterity,
	AbilityConstitution,
	AbilityIntelligence,
	AbilityWisdom,
	AbilityCharisma,
}

// DefaultAbilityMax is the ceiling used when an ability has no explicit max
const DefaultAbilityMax = 20

// Size categories
const (
	SizeTiny       = "tiny"
	SizeSmall      = "sm"
	SizeMedium     = "med"
	SizeLarge      = "lg"
	SizeHuge       = "huge"
	SizeGargantuan = "grg"
)

// Sizes lists every valid size category, smallest first
var Sizes = []string{SizeTiny, SizeSmall, SizeMedium, SizeLarge, SizeHuge, SizeGargantuan}

// Item types
const (
	ItemTypeClass      = "class"
	ItemTypeSubclass   = "subclass"
	ItemTypeRace       = "race"
	ItemTypeBackground = "background"
	ItemTypeFeat       = "feat"
	ItemTypeSpell      = "spell"
	ItemTypeWeapon     = "weapon"
	ItemTypeEquipment  = "equipment"
	ItemTypeTool       = "tool"
	ItemTypeLoot       = "loot"
)

// Proficiency levels used by skills, tools and saving throws
const (
	ProficiencyNone   float64 = 0
	ProficiencyHalf   float64 = 0.5
	ProficiencyFull   float64 = 1
	ProficiencyExpert float64 = 2
)

// Skill keys
var Skills = []string{
	"acr", "ani", "arc", "ath", "dec", "his", "ins", "itm", "inv",
	"med", "nat", "prc", "prf", "per", "rel", "slt", "ste", "sur",
}

// IsValidAbility reports whether key names one of the six abilities
func IsValidAbility(key string) bool {
	for _, a := range Abilities {
		if a == key {
			return true
		}
	}
	return false
}

// IsValidSize reports whether size is a known size category
func IsValidSize(size string) bool {
	for _, s := range Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// IsValidSkill reports whether key is a known skill
func IsValidSkill(key string) bool {
	for _, s := range Skills {
		if s == key {
			return true
		}
	}
	return false
}
