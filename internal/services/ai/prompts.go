package ai

import "strings"

const instructionTask = `Your task is to transform cooking recipes from raw text into a Gantt chart .tsv file which conveys all the same information but graphically so one can see which ingredients are involved in each step. In the end, we wish to produce a downloadable .tsv file containing a table. It will be structured as follows:

- the column headers will contain the full text description of each step in the recipe (verbatim as in the original recipe)
- Each row will refer to a different ingredient
- If a particular ingredient is used in a particular method step then the corresponding cell is marked with an “X” otherwise it’s left blank

Tip: It's very important that you break down every single ingredient verbatim (with any preparation information - no changes!) as a separate row and copy the method descriptions and verbatim (without making any changes!) from each step to each column header.

Here’s an example:

`

const exampleRecipe = `
Ingredients

vegetable oil
2 large free-range eggs
100 g plain flour
100 ml milk

Method

1. Preheat the oven to 225°C/425°F/gas 9.
2. Get yourself a cupcake tin and add a tiny splash of vegetable oil into each of the 12 compartments.
3. Pop into the oven for 10 to 15 minutes so the oil gets really hot.
4. Meanwhile, beat the eggs, flour, milk and a pinch of salt and pepper together in a jug until light and smooth.
5. Carefully remove the tray from the oven, then confidently pour the batter evenly into the compartments.
6. Pop the tray back in the oven to cook for 12 to 15 minutes, or until risen and golden.
`

const exampleTSV = `
Preheat the oven to 225°C/425°F/gas 9.	Get yourself a cupcake tin and add a tiny splash of vegetable oil into each of the 12 compartments.	Pop into the oven for 10 to 15 minutes so the oil gets really hot.	Meanwhile, beat the eggs, flour, milk and a pinch of salt and pepper together in a jug until light and smooth.	Carefully remove the tray from the oven, then confidently pour the batter evenly into the compartments.	Pop the tray back in the oven to cook for 12 to 15 minutes, or until risen and golden.
vegetable oil		X	X		X	X
2 large free-range eggs				X	X	X
100 g plain flour				X	X	X
100 ml milk				X	X	X
`

// Instruction is the fixed task description the recipe-gantt model was
// fine-tuned on. It must stay byte-for-byte identical, worked example included.
const Instruction = instructionTask + "```" + exampleRecipe + "```" + "\n\nwould output this tsv file:\n" + "```" + exampleTSV + "```"

const alpacaPreamble = "Below is an instruction that describes a task, paired with an input that provides further context. Write a response that appropriately completes the request."

// BuildAlpacaPrompt wraps an instruction and its input in the Alpaca template.
// The result ends with the response header and nothing after it.
func BuildAlpacaPrompt(instruction, input string) string {
	var sb strings.Builder
	sb.WriteString(alpacaPreamble)
	sb.WriteString("\n\n### Instruction:\n")
	sb.WriteString(instruction)
	sb.WriteString("\n\n### Input:\n")
	sb.WriteString(input)
	sb.WriteString("\n\n### Response:")
	return sb.String()
}

// BuildGanttPrompt builds the prompt for a formatted recipe.
func BuildGanttPrompt(formattedRecipe string) string {
	return BuildAlpacaPrompt(Instruction, formattedRecipe)
}
