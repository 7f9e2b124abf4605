package task

import "fmt"

const structurePrompt = `This is a YouTube video script. Correct any grammatical, spelling, or punctuation errors. Remove colloquial language to make it more formal and easier to read. Structure the text by identifying the main ideas and dividing it into clear paragraphs or "chapters".

Each paragraph should begin with a numbered title summarizing its content, followed by the revised and cleaned-up content.

The output format should be:

1. Title of Paragraph 1
Content of paragraph 1...

2. Title of Paragraph 2
Content of paragraph 2...

Do not include any timecodes or markdown separators (like "---"). The output should be a clean, structured text version of the script.
Write the result in %[1]s. If the script is not in %[1]s, translate it into %[1]s.`

const condensePrompt = `Process the structured text below. Shorten the content while preserving the overall structure and the numbered paragraph titles.

Keep only the essential information that is directly relevant to the main topic. Remove any filler, repetition, or side details.

Maintain the same format:

1. Title of Paragraph 1
Concise content of paragraph 1...

2. Title of Paragraph 2
Concise content of paragraph 2...

Focus on clarity, brevity, and staying on-topic. Keep the text in %[1]s.`

func structureInstruction(language string) string { return fmt.Sprintf(structurePrompt, language) }

func condenseInstruction(language string) string { return fmt.Sprintf(condensePrompt, language) }
