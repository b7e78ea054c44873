package pipeline

import (
	"encoding/json"
	"strings"

	"swiftapply/internal/domain"
)

// Stage prompts. Classifier and reviewer demand a bare JSON object; the
// experience generator produces rewritten resume text wrapped the same way.

const classifierPrompt = `You are an enterprise resume strategist. Respond with JSON only (no commentary, no code fences).

Inputs:
- Job title: {jd_title}
- Job description:
{jd_content}

Allowed role types:
{roleTypesList}

Task:
1. Select the single role_type from the allowed list that best fits the job.
2. Extract 8-12 unique, high-value keywords (lowercase, alphabetic or hyphenated).
3. Produce 3-6 concise insights (max 120 characters each) that guide resume tailoring.

Output exactly:
{
"roleType": "<one item from the allowed list>",
"keywords": ["keyword1", "keyword2", ...],
"insights": ["insight1", "insight2", ...]
}

Rules:
- Do not invent a roleType outside the list.
- Keep keywords unique, no punctuation except hyphen/slash.
- Insights are imperative guidance, no fluff or greetings.
- Return JSON only, starting with { and ending with }.`

const experiencePrompt = `You are an expert resume strategist specializing in role-specific experience customization. Your task is to transform a template resume using classification insights.

INPUTS:
- Role Type: {role_type}
- Priority Keywords: {keywords}
- Strategic Insights: {insights}
- Base Template: {template_content}

OBJECTIVE:
Transform the provided template resume to align with the classified role type, integrating the priority keywords naturally and applying the strategic insights for maximum impact.

CRITICAL CONSTRAINTS:
- NEVER modify company names, job titles, or employment periods
- NEVER change factual information (dates, company names, positions held)
- ONLY enhance job descriptions, achievements, and skill presentations
- Preserve the exact structure: "Company | Title | Period"

INSTRUCTIONS:
1. PRESERVE STRUCTURE: Maintain template format and all factual employment data
2. INTEGRATE KEYWORDS: Weave priority keywords naturally into job descriptions only; omit if forced or unnatural.
3. APPLY INSIGHTS: Use strategic insights to reframe achievements and responsibilities
4. ENHANCE DESCRIPTIONS: Adjust action verbs, metrics, and accomplishments within each role
5. MAINTAIN AUTHENTICITY: Keep modifications realistic and coherent
6. USE BULLET POINTS: Present each responsibility or achievement as a separate line starting with "-"
7. FORMATTING: Insert one blank line between each work experience section for readability

OUTPUT REQUIREMENTS:
Respond with JSON only. No commentary, explanations, or code blocks.

{
"workExperience": "enhanced resume content with preserved factual data"
}`

const reviewerPrompt = `You are a resume optimization specialist focused on personalizing technical skills and project descriptions for specific roles.

INPUTS:
- Role Type: {role_type}
- Priority Keywords: {keywords}
- Strategic Insights: {insights}
- Personal Profile: {personal_info}
- Generated Work Experience: {work_experience}

OBJECTIVE:
Optimize the personal profile's technical skills and custom modules to align with the target role, while preserving all factual information and the generated work experience.

STRICT PRESERVATION RULES:
- NEVER modify: fullName, email, phone, location, linkedin, website, summary, languages, education, certificates, format
- NEVER modify: the provided workExperience content
- ONLY optimize: technicalSkills array and customModules content arrays
- MAINTAIN: all original project names, companies, and factual details in custom modules

OUTPUT REQUIREMENTS:
Respond with JSON only. No commentary, explanations, or code blocks.

{
"personalInfo": { "...": "original profile with technicalSkills and customModules optimized" },
"workExperience": "unchanged content from experience generator"
}

CONSTRAINTS:
- Do not add fictional skills or technologies
- Keep optimization realistic and authentic
- Ensure keyword integration feels natural
- Maintain consistency with original profile context`

func buildClassifierPrompt(req domain.GenerateRequest) string {
	return strings.NewReplacer(
		"{jd_title}", req.JD.Title,
		"{jd_content}", req.JD.Description,
		"{roleTypesList}", strings.Join(req.RoleLabels(), ", "),
	).Replace(classifierPrompt)
}

func buildExperiencePrompt(cls domain.ClassifierResult, tpl domain.Template) string {
	templateContent := tpl.Title + ":\n" + strings.Join(tpl.Content, "\n")
	return strings.NewReplacer(
		"{role_type}", cls.RoleType,
		"{keywords}", strings.Join(cls.Keywords, ", "),
		"{insights}", strings.Join(cls.Insights, ", "),
		"{template_content}", templateContent,
	).Replace(experiencePrompt)
}

func buildReviewerPrompt(cls domain.ClassifierResult, exp domain.ExperienceResult, personalInfo map[string]any) string {
	personal, err := json.MarshalIndent(personalInfo, "", "  ")
	if err != nil {
		personal = []byte("{}")
	}
	return strings.NewReplacer(
		"{role_type}", cls.RoleType,
		"{keywords}", strings.Join(cls.Keywords, ", "),
		"{insights}", strings.Join(cls.Insights, ", "),
		"{work_experience}", exp.WorkExperience,
		"{personal_info}", string(personal),
	).Replace(reviewerPrompt)
}
