package catalog

import (
	"fmt"
	"strconv"

	"onboarding-flow/internal/models"
)

// Version of the built-in catalogs.
const Version = "2024.1"

// DefaultMaxChildren bounds the per-child steps of the family flow.
const DefaultMaxChildren = 4

var sections = []models.Section{
	{ID: "personal", Label: "About you", Description: "Basic information to create your account"},
	{ID: "address", Label: "Where you live", Description: "We use your address to find matches nearby"},
	{ID: "children", Label: "Your children", Description: "Tell us about the children who need care"},
	{ID: "experience", Label: "Your experience", Description: "Families want to know about your background"},
	{ID: "availability", Label: "Availability", Description: "When can care happen?"},
	{ID: "preferences", Label: "Preferences", Description: "A few last details"},
	{ID: "profile", Label: "Your profile", Description: "Photos and a short bio"},
}

func sectionsFor(ids ...string) []models.Section {
	var out []models.Section
	for _, id := range ids {
		for _, s := range sections {
			if s.ID == id {
				out = append(out, s)
			}
		}
	}
	return out
}

var yesNo = []models.Option{{Value: true, Label: "Yes"}, {Value: false, Label: "No"}}

var weekdays = []models.Option{
	{Value: "mon", Label: "Monday"}, {Value: "tue", Label: "Tuesday"}, {Value: "wed", Label: "Wednesday"},
	{Value: "thu", Label: "Thursday"}, {Value: "fri", Label: "Friday"}, {Value: "sat", Label: "Saturday"},
	{Value: "sun", Label: "Sunday"},
}

var periods = []models.Option{
	{Value: "morning", Label: "Morning"}, {Value: "afternoon", Label: "Afternoon"}, {Value: "night", Label: "Night"},
}

func personalStep() models.Step {
	return models.Step{
		ID:    "personal",
		Label: "Personal data",
		Questions: []models.Question{
			{
				ID: "name", Field: "name", Type: models.TypeText, Label: "Full name", Required: true,
				Section:    "personal",
				Validation: []models.Rule{{Kind: models.RuleMinLength, Limit: 3, Message: "Please enter your full name"}},
			},
			{
				ID: "cpf", Field: "cpf", Type: models.TypeText, Label: "CPF", Required: true,
				Section: "personal", Unique: "cpf",
				Validation: []models.Rule{{Kind: models.RuleCPF}},
			},
			{
				ID: "birth-date", Field: "birthDate", Type: models.TypeDate, Label: "Date of birth", Required: true,
				Section:    "personal",
				Validation: []models.Rule{{Kind: models.RulePastDate}},
			},
			{
				ID: "phone", Field: "phone", Type: models.TypeText, Label: "Mobile phone", Required: true,
				Section:    "personal",
				Validation: []models.Rule{{Kind: models.RulePhone}},
			},
			{
				ID: "email", Field: "email", Type: models.TypeText, Label: "E-mail", Required: true,
				Section: "personal", Unique: "email",
				Validation: []models.Rule{{Kind: models.RuleEmail}},
			},
		},
	}
}

func addressStep() models.Step {
	return models.Step{
		ID:    "address",
		Label: "Address",
		Questions: []models.Question{
			{ID: "address", Field: "address", Type: models.TypeAddress, Label: "Address", Required: true, Section: "address"},
		},
	}
}

func availabilityQuestions() []models.Question {
	return []models.Question{
		{
			ID: "weekdays", Field: "weekdays", Type: models.TypeCheckbox, Label: "Which days?", Required: true,
			Section: "availability", Options: weekdays,
		},
		{
			ID: "periods", Field: "periods", Type: models.TypeCheckbox, Label: "Which periods?", Required: true,
			Section: "availability", Options: periods,
		},
	}
}

// Family builds the family catalog with one step per possible child.
func Family(maxChildren int) *models.Catalog {
	if maxChildren <= 0 {
		maxChildren = DefaultMaxChildren
	}

	childCounts := make([]models.Option, 0, maxChildren+1)
	for i := 0; i <= maxChildren; i++ {
		childCounts = append(childCounts, models.Option{Value: i, Label: strconv.Itoa(i)})
	}

	steps := []models.Step{
		personalStep(),
		addressStep(),
		{
			ID:    "children",
			Label: "Children",
			Questions: []models.Question{
				{
					ID: "number-of-children", Field: "numberOfChildren", Type: models.TypeSelect,
					Label: "How many children need care?", Required: true, Section: "children",
					Options: childCounts,
					Validation: []models.Rule{
						{Kind: models.RuleMin, Limit: 0},
						{Kind: models.RuleMax, Limit: float64(maxChildren)},
					},
				},
			},
		},
	}

	for i := 1; i <= maxChildren; i++ {
		steps = append(steps, childStep(i))
	}

	availability := availabilityQuestions()
	availability = append(availability, models.Question{
		ID: "start-date", Field: "startDate", Type: models.TypeDate, Label: "When should care start?",
		Section: "availability",
	})

	steps = append(steps,
		models.Step{ID: "availability", Label: "Availability", Questions: availability},
		models.Step{
			ID:    "preferences",
			Label: "Preferences",
			Questions: []models.Question{
				{
					ID: "caregiver-gender", Field: "caregiverGender", Type: models.TypeRadio,
					Label: "Caregiver preference", Required: true, Section: "preferences",
					DefaultValue: "no-preference",
					Options: []models.Option{
						{Value: "female", Label: "Female"}, {Value: "male", Label: "Male"},
						{Value: "no-preference", Label: "No preference"},
					},
				},
				{
					ID: "has-pets", Field: "hasPets", Type: models.TypeRadio, Label: "Do you have pets?",
					Required: true, Section: "preferences", Options: yesNo,
				},
				{
					ID: "pets-description", Field: "petsDescription", Type: models.TypeTextarea,
					Label: "Tell us about your pets", Required: true, Section: "preferences",
					ShowIf: models.IsTruthy("hasPets"), PruneWhenHidden: true,
				},
				{
					ID: "notes", Field: "notes", Type: models.TypeTextarea, Label: "Anything else?",
					Section:    "preferences",
					Validation: []models.Rule{{Kind: models.RuleMaxLength, Limit: 500}},
				},
				{ID: "family-photo", Field: "photo", Type: models.TypePhoto, Label: "Family photo", Section: "preferences"},
			},
		},
	)

	return &models.Catalog{
		FlowType: models.FlowFamily,
		Version:  Version,
		Sections: sectionsFor("personal", "address", "children", "availability", "preferences"),
		Steps:    steps,
	}
}

// childStep holds the questions of the i-th child, visible while numberOfChildren >= i.
func childStep(i int) models.Step {
	prefix := fmt.Sprintf("child%d", i)
	present := models.AtLeast("numberOfChildren", float64(i))

	return models.Step{
		ID:    fmt.Sprintf("child-%d", i),
		Label: fmt.Sprintf("Child %d", i),
		Questions: []models.Question{
			{
				ID: prefix + "-name", Field: prefix + "Name", Type: models.TypeText,
				Label: fmt.Sprintf("Child %d name", i), Required: true, Section: "children",
				ShowIf: present, PruneWhenHidden: true,
			},
			{
				ID: prefix + "-birth-date", Field: prefix + "BirthDate", Type: models.TypeDate,
				Label: fmt.Sprintf("Child %d date of birth", i), Required: true, Section: "children",
				ShowIf: present, PruneWhenHidden: true,
				Validation: []models.Rule{{Kind: models.RulePastDate}},
			},
			{
				ID: prefix + "-special-needs", Field: prefix + "SpecialNeeds", Type: models.TypeRadio,
				Label: "Any special needs?", Required: true, Section: "children", Options: yesNo,
				ShowIf: present, PruneWhenHidden: true,
			},
			{
				ID: prefix + "-special-needs-details", Field: prefix + "SpecialNeedsDetails", Type: models.TypeTextarea,
				Label: "Tell us more", Required: true, Section: "children",
				ShowIf:          models.AllOf(present, models.IsTruthy(prefix+"SpecialNeeds")),
				PruneWhenHidden: true,
			},
		},
	}
}

// Nanny builds the caregiver catalog.
func Nanny() *models.Catalog {
	availability := availabilityQuestions()
	availability = append(availability, models.Question{
		ID: "hourly-rate", Field: "hourlyRate", Type: models.TypeText, Label: "Hourly rate (R$)",
		Required: true, Section: "availability",
		Validation: []models.Rule{
			{Kind: models.RuleMin, Limit: 10, Message: "Hourly rate must be at least R$10"},
			{Kind: models.RuleMax, Limit: 500},
		},
	})

	return &models.Catalog{
		FlowType: models.FlowNanny,
		Version:  Version,
		Sections: sectionsFor("personal", "address", "experience", "availability", "profile"),
		Steps: []models.Step{
			personalStep(),
			addressStep(),
			{
				ID:    "experience",
				Label: "Experience",
				Questions: []models.Question{
					{
						ID: "experience-years", Field: "experienceYears", Type: models.TypeText,
						Label: "Years of experience", Required: true, Section: "experience",
						Validation: []models.Rule{{Kind: models.RuleMin, Limit: 0}, {Kind: models.RuleMax, Limit: 60}},
					},
					{
						ID: "has-references", Field: "hasReferences", Type: models.TypeRadio,
						Label: "Can you provide references?", Required: true, Section: "experience", Options: yesNo,
					},
					{
						ID: "references", Field: "references", Type: models.TypeTextarea,
						Label: "References (name and phone)", Required: true, Section: "experience",
						ShowIf: models.IsTruthy("hasReferences"), PruneWhenHidden: true,
					},
					{
						ID: "certifications", Field: "certifications", Type: models.TypeCheckbox,
						Label: "Certifications", Section: "experience",
						Options: []models.Option{
							{Value: "first-aid", Label: "First aid"}, {Value: "cpr", Label: "CPR"},
							{Value: "pedagogy", Label: "Pedagogy"}, {Value: "nursing", Label: "Nursing"},
						},
					},
					{
						ID: "age-groups", Field: "ageGroups", Type: models.TypeCheckbox,
						Label: "Age groups you care for", Required: true, Section: "experience",
						Options: []models.Option{
							{Value: "baby", Label: "0-1 years"}, {Value: "toddler", Label: "1-3 years"},
							{Value: "school-age", Label: "4-12 years"}, {Value: "teen", Label: "13+ years"},
						},
					},
				},
			},
			{ID: "availability", Label: "Availability", Questions: availability},
			{
				ID:    "profile",
				Label: "Profile",
				Questions: []models.Question{
					{
						ID: "photos", Field: "photos", Type: models.TypeMultiPhoto, Label: "Profile photos",
						Required: true, Section: "profile",
						Validation: []models.Rule{{Kind: models.RuleMaxItems, Limit: 6}},
					},
					{
						ID: "bio", Field: "bio", Type: models.TypeAIGeneratedText, Label: "About you",
						Required: true, Section: "profile",
						Validation: []models.Rule{{Kind: models.RuleMinLength, Limit: 50, Message: "Your bio should have at least 50 characters"}},
					},
				},
			},
		},
	}
}
