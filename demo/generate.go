package demo

import (
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
)

const (
	// Confidence and Source label every gold relation of the demo dataset.
	Confidence = 0.95
	Source     = "demo_data"
)

// Generate builds the chronic-disease demo dataset: six diseases with their
// drugs, symptoms and examinations, and 40 curated relations.
func Generate() *Dataset {
	ds := &Dataset{}
	for _, d := range diseases() {
		ds.Entities = append(ds.Entities, d)
	}
	for _, d := range drugs() {
		ds.Entities = append(ds.Entities, d)
	}
	for _, name := range []string{
		"多饮", "多尿", "体重下降", "乏力", "头痛", "头晕", "胸痛", "胸闷",
		"呼吸困难", "慢性咳嗽", "咳痰", "偏瘫", "言语不清", "水肿", "蛋白尿",
	} {
		ds.Entities = append(ds.Entities, Symptom{Name: name})
	}
	for _, e := range []Examination{
		{Name: "空腹血糖", NormalRange: "3.9-6.1 mmol/L"},
		{Name: "糖化血红蛋白", NormalRange: "<6.5%"},
		{Name: "血压测量", NormalRange: "<140/90 mmHg"},
		{Name: "心电图"},
		{Name: "胸部CT"},
		{Name: "肺功能检查"},
		{Name: "头颅CT"},
		{Name: "肾功能检查"},
		{Name: "尿常规"},
		{Name: "血脂检查"},
	} {
		ds.Entities = append(ds.Entities, e)
	}

	for _, r := range goldRelations {
		ds.Relations = append(ds.Relations, extraction.Triple{
			Head:       r[0],
			HeadType:   extraction.EntityType(r[1]),
			Relation:   extraction.RelationType(r[2]),
			Tail:       r[3],
			TailType:   extraction.EntityType(r[4]),
			Confidence: Confidence,
			Source:     Source,
		})
	}
	return ds
}

func diseases() []Disease {
	return []Disease{
		{
			Name:          "2型糖尿病",
			Aliases:       []string{"T2DM", "Type 2 Diabetes", "成人糖尿病"},
			ICD10:         "E11",
			Definition:    "以胰岛素抵抗和相对胰岛素缺乏为特征的慢性代谢性疾病",
			Category:      "内分泌代谢疾病",
			RiskFactors:   []string{"肥胖", "家族史", "不良饮食习惯", "缺乏运动"},
			Complications: []string{"糖尿病肾病", "糖尿病视网膜病变", "心血管疾病"},
		},
		{
			Name:          "高血压",
			Aliases:       []string{"Hypertension", "HTN"},
			ICD10:         "I10",
			Definition:    "以体循环动脉血压持续升高为主要特征的慢性疾病",
			Category:      "心血管疾病",
			RiskFactors:   []string{"高盐饮食", "肥胖", "吸烟", "饮酒", "精神紧张"},
			Complications: []string{"脑卒中", "冠心病", "心力衰竭", "肾功能不全"},
		},
		{
			Name:          "冠心病",
			Aliases:       []string{"Coronary Heart Disease", "CHD", "冠状动脉粥样硬化性心脏病"},
			ICD10:         "I25",
			Definition:    "冠状动脉粥样硬化导致心肌缺血缺氧的心脏病",
			Category:      "心血管疾病",
			RiskFactors:   []string{"高血压", "高血脂", "糖尿病", "吸烟", "肥胖"},
			Complications: []string{"心肌梗死", "心力衰竭", "心律失常"},
		},
		{
			Name:          "慢性阻塞性肺疾病",
			Aliases:       []string{"COPD", "慢阻肺"},
			ICD10:         "J44",
			Definition:    "以持续气流受限为特征的慢性肺部疾病",
			Category:      "呼吸系统疾病",
			RiskFactors:   []string{"吸烟", "空气污染", "职业粉尘", "遗传因素"},
			Complications: []string{"肺心病", "呼吸衰竭", "自发性气胸"},
		},
		{
			Name:          "脑卒中",
			Aliases:       []string{"Stroke", "中风", "脑血管意外"},
			ICD10:         "I64",
			Definition:    "急性脑血管循环障碍导致的脑功能损害",
			Category:      "神经系统疾病",
			RiskFactors:   []string{"高血压", "房颤", "糖尿病", "高血脂", "吸烟"},
			Complications: []string{"偏瘫", "失语", "吞咽困难", "认知障碍"},
		},
		{
			Name:          "慢性肾病",
			Aliases:       []string{"CKD", "Chronic Kidney Disease", "慢性肾功能不全"},
			ICD10:         "N18",
			Definition:    "肾脏结构或功能异常持续超过3个月",
			Category:      "泌尿系统疾病",
			RiskFactors:   []string{"糖尿病", "高血压", "肾小球肾炎", "多囊肾"},
			Complications: []string{"肾衰竭", "心血管疾病", "贫血", "骨病"},
		},
	}
}

func drugs() []Drug {
	return []Drug{
		{
			Name:              "二甲双胍",
			Category:          "双胍类降糖药",
			Indications:       []string{"2型糖尿病"},
			Contraindications: []string{"严重肾功能不全", "酸中毒", "严重感染"},
			SideEffects:       []string{"胃肠道反应", "维生素B12缺乏", "乳酸酸中毒(罕见)"},
		},
		{
			Name:              "氨氯地平",
			Category:          "钙通道阻滞剂",
			Indications:       []string{"高血压", "心绞痛"},
			Contraindications: []string{"严重低血压", "心源性休克"},
			SideEffects:       []string{"踝部水肿", "头痛", "面部潮红"},
		},
		{
			Name:              "阿司匹林",
			Category:          "抗血小板药",
			Indications:       []string{"冠心病", "脑卒中预防", "心绞痛"},
			Contraindications: []string{"活动性出血", "血友病", "阿司匹林哮喘"},
			SideEffects:       []string{"胃肠道出血", "过敏反应", "耳鸣"},
		},
		{
			Name:              "沙美特罗",
			Category:          "长效β2受体激动剂",
			Indications:       []string{"COPD", "哮喘"},
			Contraindications: []string{"对成分过敏"},
			SideEffects:       []string{"震颤", "心悸", "低钾血症"},
		},
		{
			Name:              "阿托伐他汀",
			Category:          "他汀类降脂药",
			Indications:       []string{"高胆固醇血症", "冠心病二级预防"},
			Contraindications: []string{"活动性肝病", "妊娠期"},
			SideEffects:       []string{"肌肉痛", "肝酶升高", "糖尿病风险增加"},
		},
	}
}

// goldRelations rows are head, head type, relation, tail, tail type.
var goldRelations = [][5]string{
	// disease - symptom
	{"2型糖尿病", "DISEASE", "HAS_SYMPTOM", "多饮", "SYMPTOM"},
	{"2型糖尿病", "DISEASE", "HAS_SYMPTOM", "多尿", "SYMPTOM"},
	{"2型糖尿病", "DISEASE", "HAS_SYMPTOM", "体重下降", "SYMPTOM"},
	{"2型糖尿病", "DISEASE", "HAS_SYMPTOM", "乏力", "SYMPTOM"},
	{"高血压", "DISEASE", "HAS_SYMPTOM", "头痛", "SYMPTOM"},
	{"高血压", "DISEASE", "HAS_SYMPTOM", "头晕", "SYMPTOM"},
	{"冠心病", "DISEASE", "HAS_SYMPTOM", "胸痛", "SYMPTOM"},
	{"冠心病", "DISEASE", "HAS_SYMPTOM", "胸闷", "SYMPTOM"},
	{"慢性阻塞性肺疾病", "DISEASE", "HAS_SYMPTOM", "呼吸困难", "SYMPTOM"},
	{"慢性阻塞性肺疾病", "DISEASE", "HAS_SYMPTOM", "慢性咳嗽", "SYMPTOM"},
	{"慢性阻塞性肺疾病", "DISEASE", "HAS_SYMPTOM", "咳痰", "SYMPTOM"},
	{"脑卒中", "DISEASE", "HAS_SYMPTOM", "偏瘫", "SYMPTOM"},
	{"脑卒中", "DISEASE", "HAS_SYMPTOM", "言语不清", "SYMPTOM"},
	{"慢性肾病", "DISEASE", "HAS_SYMPTOM", "水肿", "SYMPTOM"},
	{"慢性肾病", "DISEASE", "HAS_SYMPTOM", "蛋白尿", "SYMPTOM"},

	// disease - drug
	{"2型糖尿病", "DISEASE", "TREATED_BY", "二甲双胍", "DRUG"},
	{"2型糖尿病", "DISEASE", "FIRST_LINE", "二甲双胍", "DRUG"},
	{"高血压", "DISEASE", "TREATED_BY", "氨氯地平", "DRUG"},
	{"高血压", "DISEASE", "FIRST_LINE", "氨氯地平", "DRUG"},
	{"冠心病", "DISEASE", "TREATED_BY", "阿司匹林", "DRUG"},
	{"冠心病", "DISEASE", "FIRST_LINE", "阿司匹林", "DRUG"},
	{"脑卒中", "DISEASE", "TREATED_BY", "阿司匹林", "DRUG"},
	{"慢性阻塞性肺疾病", "DISEASE", "TREATED_BY", "沙美特罗", "DRUG"},
	{"冠心病", "DISEASE", "TREATED_BY", "阿托伐他汀", "DRUG"},

	// disease - examination
	{"2型糖尿病", "DISEASE", "DIAGNOSED_BY", "空腹血糖", "EXAMINATION"},
	{"2型糖尿病", "DISEASE", "DIAGNOSED_BY", "糖化血红蛋白", "EXAMINATION"},
	{"高血压", "DISEASE", "DIAGNOSED_BY", "血压测量", "EXAMINATION"},
	{"冠心病", "DISEASE", "DIAGNOSED_BY", "心电图", "EXAMINATION"},
	{"慢性阻塞性肺疾病", "DISEASE", "DIAGNOSED_BY", "肺功能检查", "EXAMINATION"},
	{"脑卒中", "DISEASE", "DIAGNOSED_BY", "头颅CT", "EXAMINATION"},
	{"慢性肾病", "DISEASE", "DIAGNOSED_BY", "肾功能检查", "EXAMINATION"},
	{"慢性肾病", "DISEASE", "DIAGNOSED_BY", "尿常规", "EXAMINATION"},

	// drug - side effect
	{"二甲双胍", "DRUG", "CAUSES", "胃肠道反应", "SYMPTOM"},
	{"阿司匹林", "DRUG", "CAUSES", "胃肠道出血", "SYMPTOM"},
	{"氨氯地平", "DRUG", "CAUSES", "踝部水肿", "SYMPTOM"},

	// disease - complication
	{"2型糖尿病", "DISEASE", "COMPLICATION", "慢性肾病", "DISEASE"},
	{"2型糖尿病", "DISEASE", "COMPLICATION", "冠心病", "DISEASE"},
	{"高血压", "DISEASE", "COMPLICATION", "脑卒中", "DISEASE"},
	{"高血压", "DISEASE", "COMPLICATION", "冠心病", "DISEASE"},
	{"高血压", "DISEASE", "COMPLICATION", "慢性肾病", "DISEASE"},
}
