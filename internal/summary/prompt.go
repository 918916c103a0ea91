package summary

// monthlyReportPrompt takes month, year, the concatenated summaries, then
// month and year again for the report heading.
const monthlyReportPrompt = `You are analyzing meeting summaries for %d/%d.

Below are all the meeting summaries for this month:

%s

Please generate a comprehensive monthly report with the following sections:

## Monthly Summary Report - %d/%d

### 1. Key Decisions Made
List all major decisions that were made during the month.

### 2. Completed Tasks & Milestones
Summarize all tasks and milestones that were completed.

### 3. Ongoing Projects & Status
Provide status updates on ongoing projects.

### 4. Action Items & Next Steps
List pending action items and next steps.

### 5. Customer Pulse
Analyze customer feedback, concerns, and satisfaction indicators mentioned in meetings.

### 6. Team Performance & Challenges
Highlight team achievements and any challenges faced.

### 7. Key Metrics
Extract any numbers, metrics, or KPIs mentioned.

### 8. Strategic Insights
Provide strategic insights and recommendations based on the month's discussions.

Be specific, cite dates where relevant, and provide a clear, actionable summary.`
