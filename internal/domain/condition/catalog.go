package condition

const (
	healthProgressPrefix = "/api/health-progress"
)

var (
	severity    = []string{"none", "mild", "moderate", "severe"}
	noSometimes = []string{"no", "sometimes", "yes_often"}
	goodFairBad = []string{"good", "fair", "poor"}
)

// vitals is the shared common schema. Conditions whose clinical model
// differs redeclare a key in their condition schema.
func vitals() Schema {
	return Schema{
		NumericString("blood_pressure_systolic"),
		NumericString("blood_pressure_diastolic"),
		NumericString("heart_rate"),
		NumericString("respiratory_rate"),
		NumericString("temperature"),
		NumericString("oxygen_saturation"),
		Int("pain_level", 0, 10),
		Int("energy_level", 0, 10),
		Int("sleep_quality", 0, 10),
		Number("sleep_hours", 0, 24),
		Structured("medications"),
		Structured("symptoms"),
		Text("notes"),
		Text("additional_notes"),
	}
}

func postOp() Field { return Int("day_post_op", 0, 36500) }

// Catalog returns the condition specs served by the API.
func Catalog() []ConditionSpec {
	return []ConditionSpec{
		abdominal(), bariatric(), burnCare(), cancer(), cardiac(), cesarean(),
		diabetes(), generalHealth(), gynecologic(), heart(), hypertension(),
		kidney(), lifelong(), orthopedic(), urological(), prenatal(), postnatal(),
	}
}

func abdominal() ConditionSpec {
	return ConditionSpec{
		Type:   "abdominal",
		Prefix: healthProgressPrefix + "/abdominal",
		Common: vitals(),
		Condition: Schema{
			postOp(),
			Text("fluid_intake"),
			Text("urine_output"),
			Text("gi_function"),
			Text("nausea_vomiting"),
			Text("appetite"),
			Text("wound_condition"),
			Text("mobility"),
		},
	}
}

// Bariatric clients compute urgency themselves and send it with the entry.
func bariatric() ConditionSpec {
	return ConditionSpec{
		Type:          "bariatric",
		Prefix:        healthProgressPrefix + "/bariatric",
		Common:        vitals(),
		UrgencySource: UrgencyClient,
		Condition: Schema{
			postOp(),
			Text("pain_location"),
			Text("fluid_intake"),
			Structured("fluid_types"),
			Text("urine_output"),
			Text("urine_color"),
			Enum("nausea_level", severity...),
			Int("vomiting_episodes", 0, 100),
			Enum("abdominal_pain", severity...),
			Enum("abdominal_distension", severity...),
			Bool("bloating"),
			Text("wound_condition"),
			Enum("wound_tenderness", severity...),
			Bool("has_drain"),
			Text("breathing_effort"),
			Bool("oxygen_therapy"),
			Text("mobility_level"),
			Text("ambulation_frequency"),
			Int("physiotherapy_sessions", 0, 50),
			Text("diet_stage"),
			Text("protein_intake"),
			Bool("water_goal_met"),
			Text("mood_state"),
			Text("motivation_level"),
			Bool("cravings"),
		},
	}
}

func burnCare() ConditionSpec {
	return ConditionSpec{
		Type:   "burn_care",
		Prefix: healthProgressPrefix + "/burn-care",
		Common: vitals(),
		Condition: Schema{
			postOp(),
			Enum("itching", severity...),
			Enum("wound_appearance", "pink", "red", "black", "yellow", "mixed"),
			Enum("drainage", "none", "serous", "serosanguinous", "purulent"),
			Bool("rom_exercises"),
			Enum("joint_tightness", severity...),
			Enum("mobility", "bed_bound", "chair", "walking_indoor", "walking_outdoor"),
			Bool("compression_garment"),
			Enum("scar_appearance", "red_raised", "pink_raised", "flat_pink", "flat_pale"),
			Text("protein_intake"),
			Text("fluid_intake"),
		},
	}
}

func cancer() ConditionSpec {
	return ConditionSpec{
		Type:   "cancer",
		Prefix: healthProgressPrefix + "/cancer",
		Common: vitals(),
		Condition: Schema{
			Text("pain_location"),
			Int("side_effects", 0, 10),
		},
		Rule: &Rule{
			Predicates: []Predicate{
				{Field: "pain_level", Op: OpAtLeast, Steps: []Step{{Bound: 8, Points: 3}, {Bound: 6, Points: 2}, {Bound: 4, Points: 1}}},
				{Field: "side_effects", Op: OpAtLeast, Steps: []Step{{Bound: 8, Points: 3}, {Bound: 6, Points: 2}, {Bound: 4, Points: 1}}},
				{Field: "blood_pressure_systolic", Op: OpAtLeast, Steps: []Step{{Bound: 180, Points: 2}, {Bound: 160, Points: 1}}},
				{Field: "blood_pressure_diastolic", Op: OpAtLeast, Steps: []Step{{Bound: 120, Points: 2}, {Bound: 100, Points: 1}}},
				{Field: "energy_level", Op: OpAtMost, Steps: []Step{{Bound: 3, Points: 1}}},
			},
			High:   6,
			Medium: 3,
		},
	}
}

func cardiac() ConditionSpec {
	return ConditionSpec{
		Type:   "cardiac",
		Prefix: healthProgressPrefix + "/cardiac",
		Common: vitals(),
		Condition: Schema{
			postOp(),
			Text("cardiac_rhythm"),
			Bool("rhythm_stable"),
			Text("breathing_effort"),
			Bool("oxygen_therapy"),
			Text("oxygen_flow"),
			Text("incentive_spirometer"),
			Text("cough_effectiveness"),
			Bool("has_chest_tube"),
			Text("chest_tube_output"),
			Text("chest_drain_color"),
			Text("chest_drain_consistency"),
			Text("urine_output"),
			Text("fluid_balance"),
			Text("sternal_wound_condition"),
			Text("graft_wound_condition"),
			Text("wound_discharge_type"),
			Text("wound_tenderness"),
			Text("consciousness_level"),
			Text("orientation"),
			Text("limb_movement"),
			Text("mobility_level"),
			Text("ambulation_distance"),
			Text("pain_location"),
			Text("mood_state"),
			Enum("sleep_quality", "poor", "fair", "good", "excellent"),
		},
	}
}

func cesarean() ConditionSpec {
	return ConditionSpec{
		Type:   "cesarean",
		Prefix: healthProgressPrefix + "/cesarean",
		Common: vitals(),
		Condition: Schema{
			postOp(),
			Text("fundal_height"),
			Text("uterine_firmness"),
			Text("lochia_color"),
			Text("lochia_amount"),
			Text("lochia_odor"),
			Text("wound_condition"),
			Text("wound_discharge_type"),
			Text("wound_tenderness"),
			Text("urine_output"),
			Bool("urinary_retention"),
			Text("bowel_sounds"),
			Bool("flatus_passed"),
			Bool("bowel_movement"),
			Text("mobility_level"),
			Text("ambulation_distance"),
			Bool("breastfeeding"),
			Text("breast_engorgement"),
			Text("breast_tenderness"),
			Text("nipple_condition"),
			Text("feeding_frequency"),
		},
	}
}

func diabetes() ConditionSpec {
	return ConditionSpec{
		Type:   "diabetes",
		Prefix: healthProgressPrefix + "/diabetes",
		Common: vitals(),
		Condition: Schema{
			NumericString("blood_glucose"),
			Text("carbs_consumed"),
			Text("insulin_dose"),
			Text("activity_level"),
			NumericString("weight"),
			Int("swelling_level", 0, 10),
		},
	}
}

func generalHealth() ConditionSpec {
	return ConditionSpec{
		Type:   "general_health",
		Prefix: healthProgressPrefix + "/general",
		Common: vitals(),
		Condition: Schema{
			Enum("health_trend", "significantly_better", "slightly_better", "same", "slightly_worse", "significantly_worse"),
			Int("overall_wellbeing", 0, 10),
			Int("primary_symptom_severity", 0, 10),
			Text("primary_symptom_description"),
		},
		Aliases: map[string]string{
			"primary_symptom.severity":    "primary_symptom_severity",
			"primary_symptom.description": "primary_symptom_description",
			"wellbeing":                   "overall_wellbeing",
			"trend":                       "health_trend",
		},
		Rule: &Rule{
			Predicates: []Predicate{
				{Field: "health_trend", Op: OpEquals, Steps: []Step{
					{Phrases: []string{"significantly_worse"}, Points: 3},
					{Phrases: []string{"slightly_worse"}, Points: 1},
				}},
				{Field: "overall_wellbeing", Op: OpAtMost, Steps: []Step{{Bound: 2, Points: 3}, {Bound: 4, Points: 1}}},
				{Field: "primary_symptom_severity", Op: OpAtLeast, Steps: []Step{{Bound: 9, Points: 3}, {Bound: 7, Points: 2}, {Bound: 5, Points: 1}}},
			},
			High:   5,
			Medium: 3,
		},
	}
}

// Gynecologic rows were historically contaminated with urological keys, so
// unknown keys are rejected here.
func gynecologic() ConditionSpec {
	return ConditionSpec{
		Type:   "gynecologic",
		Prefix: healthProgressPrefix + "/gynecologic",
		Common: vitals(),
		Strict: true,
		Condition: Schema{
			postOp(),
			EnumList("pain_location", "abdominal", "pelvic", "shoulder", "back", "incisional", "other"),
			Enum("bleeding_amount", "none", "spotting", "light", "moderate", "heavy"),
			Enum("discharge_color", "clear", "pink", "red", "brown", "yellow", "green", "other"),
			Enum("discharge_odor", "none", "mild", "strong", "foul"),
			Enum("discharge_consistency", "thin", "thick", "mucous", "watery", "clotted"),
			Bool("clots_present"),
			Enum("clot_size", "none", "small", "medium", "large"),
			Enum("urinary_frequency", "normal", "increased", "decreased", "painful"),
			Bool("urinary_retention"),
			Bool("has_catheter"),
			NumericString("catheter_output"),
			Enum("catheter_patency", "patent", "slow", "obstructed", "leaking"),
			Enum("dysuria", severity...),
			Enum("nausea_level", severity...),
			Int("vomiting_episodes", 0, 100),
			Enum("abdominal_distension", severity...),
			Enum("bowel_sounds", "present_normal", "present_hyperactive", "present_hypoactive", "absent"),
			Bool("flatus_passed"),
			Bool("bowel_movement"),
			Enum("bowel_movement_type", "normal", "constipated", "diarrhea", "other"),
			Enum("wound_condition", "clean_dry", "redness", "swelling", "discharge", "dehiscence"),
			Enum("wound_discharge_type", "serous", "sanguinous", "purulent", "other"),
			Enum("wound_tenderness", severity...),
			Bool("has_drain"),
			NumericString("drain_output"),
			Enum("drain_color", "serous", "sanguinous", "serosanguinous", "purulent"),
			Enum("drain_consistency", "thin", "thick", "clotted"),
			Enum("mobility_level", "bed_bound", "chair", "assisted_walking", "independent"),
			Enum("ambulation_frequency", "none", "rare", "regular", "frequent"),
			Enum("ambulation_distance", "none", "room", "hallway", "unlimited"),
			Enum("mood_state", "excellent", "good", "fair", "poor", "depressed"),
			Enum("anxiety_level", severity...),
			Enum("sleep_quality", "poor", "fair", "good", "excellent"),
			Enum("emotional_support", "adequate", "some", "minimal", "none"),
		},
	}
}

func heart() ConditionSpec {
	return ConditionSpec{
		Type:   "heart",
		Prefix: healthProgressPrefix + "/heart",
		Common: vitals(),
		Condition: Schema{
			Int("chest_pain_level", 0, 10),
			Text("pain_location"),
			NumericString("weight"),
			Int("swelling_level", 0, 10),
			Int("breathing_difficulty", 0, 10),
		},
	}
}

func hypertension() ConditionSpec {
	return ConditionSpec{
		Type:   "hypertension",
		Prefix: healthProgressPrefix + "/hypertension",
		Common: vitals(),
		Condition: Schema{
			NumericString("weight"),
			Int("headache_level", 0, 10),
			Int("dizziness_level", 0, 10),
			Text("salt_intake"),
		},
	}
}

func kidney() ConditionSpec {
	return ConditionSpec{
		Type:   "kidney",
		Prefix: healthProgressPrefix + "/kidney",
		Common: vitals(),
		Condition: Schema{
			NumericString("weight"),
			Int("swelling_level", 0, 10),
			Text("urine_output"),
			Text("fluid_intake"),
			Int("breathing_difficulty", 0, 10),
			Int("fatigue_level", 0, 10),
			Int("nausea_level", 0, 10),
			Int("itching_level", 0, 10),
		},
		Rule: &Rule{
			Predicates: []Predicate{
				{Field: "blood_pressure_systolic", Op: OpAtLeast, Steps: []Step{{Bound: 180, Points: 3}, {Bound: 160, Points: 2}, {Bound: 140, Points: 1}}},
				{Field: "blood_pressure_diastolic", Op: OpAtLeast, Steps: []Step{{Bound: 120, Points: 3}, {Bound: 100, Points: 2}, {Bound: 90, Points: 1}}},
				{Field: "breathing_difficulty", Op: OpAtLeast, Steps: []Step{{Bound: 8, Points: 3}, {Bound: 6, Points: 2}, {Bound: 4, Points: 1}}},
				{Field: "swelling_level", Op: OpAtLeast, Steps: []Step{{Bound: 8, Points: 2}, {Bound: 6, Points: 1}}},
				{Field: "urine_output", Op: OpContains, Steps: []Step{
					{Phrases: []string{"less", "decreased"}, Points: 2},
					{Phrases: []string{"very low", "none"}, Points: 3},
				}},
				{Field: "fatigue_level", Op: OpAtLeast, Steps: []Step{{Bound: 8, Points: 1}}},
				{Field: "nausea_level", Op: OpAtLeast, Steps: []Step{{Bound: 8, Points: 2}}},
				{Field: "itching_level", Op: OpAtLeast, Steps: []Step{{Bound: 8, Points: 1}}},
			},
			High:   6,
			Medium: 3,
		},
	}
}

// Lifelong entries reference several chronic conditions at once and stay a
// single entry carrying the selected tags.
func lifelong() ConditionSpec {
	return ConditionSpec{
		Type:   "lifelong",
		Prefix: healthProgressPrefix + "/lifelong",
		Common: vitals(),
		Condition: Schema{
			EnumList("selected_conditions", "diabetes", "hypertension", "heart", "kidney", "cancer"),
		},
	}
}

func orthopedic() ConditionSpec {
	return ConditionSpec{
		Type:   "orthopedic",
		Prefix: healthProgressPrefix + "/orthopedic",
		Common: vitals(),
		Condition: Schema{
			postOp(),
			Text("selected_condition"),
			Text("pain_location"),
			Enum("limb_color", "normal", "pale", "blue", "red"),
			Enum("limb_temperature", "normal", "cool", "warm", "hot"),
			Enum("capillary_refill", "normal", "delayed", "absent"),
			Enum("limb_movement", "normal", "reduced", "absent"),
			Enum("limb_sensation", "normal", "reduced", "numbness", "tingling"),
			Enum("distal_pulse", "present", "reduced", "absent"),
			Enum("wound_condition", "clean", "redness", "discharge", "odor"),
			Enum("wound_discharge_type", "serous", "bloody", "purulent"),
			Enum("wound_swelling", severity...),
			Enum("mobility_level", "independent", "assisted", "bed_bound"),
			Enum("weight_bearing_status", "non_weight", "touch_down", "partial", "full"),
			Enum("assistive_device", "none", "crutches", "walker", "cane"),
			Bool("has_drain"),
			NumericString("drain_output"),
			Enum("drain_color", "serous", "sanguinous", "serosanguinous", "purulent"),
		},
	}
}

func urological() ConditionSpec {
	return ConditionSpec{
		Type:   "urological",
		Prefix: healthProgressPrefix + "/urological",
		Common: vitals(),
		Strict: true,
		Condition: Schema{
			postOp(),
			Text("selected_condition"),
			Text("urine_output"),
			Text("urine_color"),
			Text("urine_clarity"),
			Text("urine_odor"),
			Text("urine_debris"),
			Bool("has_catheter"),
			Text("catheter_patency"),
			Text("catheter_drainage"),
			Bool("has_drain"),
			Text("drain_output"),
			Text("drain_color"),
			Text("drain_consistency"),
			Text("insertion_site"),
			Text("wound_condition"),
			Text("wound_discharge_type"),
			Text("wound_tenderness"),
			Text("dressing_condition"),
			Text("nausea_level"),
			Int("vomiting_episodes", 0, 100),
			Text("abdominal_distension"),
			Text("bowel_sounds"),
			Bool("flatus_passed"),
			Bool("bowel_movement"),
			Text("oral_intake"),
			Text("iv_intake"),
			Text("total_intake"),
			Text("fluid_balance"),
			NumericString("creatinine_level"),
			Text("hydration_status"),
		},
	}
}

func prenatal() ConditionSpec {
	return ConditionSpec{
		Type:   "prenatal",
		Prefix: "/api/prenatal",
		Common: vitals(),
		Aliases: map[string]string{
			"maternal_temperature": "temperature",
			"maternal_heart_rate":  "heart_rate",
		},
		Condition: Schema{
			Text("gestational_age"),
			Bool("high_risk"),
			NumericString("weight"),
			Enum("edema", severity...),
			Structured("edema_location"),
			Enum("headache", severity...),
			Bool("visual_disturbances"),
			Bool("epigastric_pain"),
			Enum("nausea_level", severity...),
			Int("vomiting_episodes", 0, 100),
			Enum("fetal_movement", "normal", "decreased", "increased", "absent"),
			Int("movement_count", 0, 1000),
			Text("movement_duration"),
			Bool("contractions"),
			Text("contraction_frequency"),
			Text("contraction_duration"),
			Enum("contraction_intensity", "mild", "moderate", "strong"),
			Enum("vaginal_bleeding", "none", "spotting", "light", "moderate", "heavy"),
			Enum("bleeding_color", "pink", "red", "brown"),
			Bool("fluid_leak"),
			Enum("fluid_color", "clear", "yellow", "green", "blood_tinged"),
			Enum("fluid_amount", "small", "moderate", "large"),
			Enum("urinary_frequency", "normal", "increased", "decreased"),
			Enum("dysuria", severity...),
			Bool("urinary_incontinence"),
			Enum("appetite", "normal", "decreased", "increased"),
			Enum("heartburn", severity...),
			Enum("constipation", severity...),
			Bool("medications_taken"),
			Text("missed_medications"),
		},
	}
}

func postnatal() ConditionSpec {
	return ConditionSpec{
		Type:   "postnatal",
		Prefix: "/api/postnatal",
		Common: vitals(),
		Aliases: map[string]string{
			"maternal_temperature": "temperature",
			"maternal_heart_rate":  "heart_rate",
		},
		Condition: Schema{
			Text("infant_name"),
			Int("days_postpartum", 0, 3650),
			Bool("incision_redness"),
			Bool("incision_discharge"),
			Enum("lochia_flow", "none", "light", "moderate", "heavy"),
			Enum("lochia_color", "red", "pink", "brown", "yellow"),
			Enum("perineal_pain", severity...),
			Enum("uterine_pain", severity...),
			Enum("breast_engorgement", severity...),
			Enum("nipple_pain", severity...),
			Enum("c_section_pain", severity...),
			Enum("mood_laugh", "yes", "sometimes", "no"),
			Enum("mood_anxious", noSometimes...),
			Enum("mood_blame", noSometimes...),
			Enum("mood_panic", noSometimes...),
			Enum("mood_sleep", noSometimes...),
			Enum("mood_sad", noSometimes...),
			Enum("mood_crying", noSometimes...),
			Enum("mood_harm", noSometimes...),
			Enum("feeding_method", "breast", "formula", "mixed"),
			Int("feeding_frequency", 0, 48),
			Text("feeding_duration"),
			Enum("latching_quality", goodFairBad...),
			Int("wet_diapers", 0, 50),
			Int("soiled_diapers", 0, 50),
			Enum("stool_color", "yellow", "green", "brown", "black"),
			Enum("stool_consistency", "seedy", "pasty", "watery"),
			NumericString("infant_temperature"),
			NumericString("infant_heart_rate"),
			Enum("jaundice_level", severity...),
			Enum("umbilical_cord", "dry", "moist", "red", "discharge"),
			Enum("skin_condition", "normal", "rash", "dry", "peeling"),
			Enum("infant_alertness", "very_alert", "alert", "sleepy", "lethargic"),
			Enum("sleep_pattern", goodFairBad...),
			Enum("crying_level", "normal", "increased", "excessive"),
			Enum("maternal_energy", goodFairBad...),
			Enum("support_system", "adequate", "some", "inadequate"),
		},
	}
}
